package services

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"bikes-api/config"
)

// Mailer delivers the account emails sent by AuthService.
type Mailer interface {
	SendResetPasswordInstructions(email, link string) error
	SendPasswordChanged(email string) error
}

// EmailService is the SMTP Mailer.
type EmailService struct {
	config *config.Config
	dialer *gomail.Dialer
	log    *logrus.Logger
}

func NewEmailService(cfg *config.Config, log *logrus.Logger) *EmailService {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)

	return &EmailService{
		config: cfg,
		dialer: dialer,
		log:    log,
	}
}

func (es *EmailService) SendResetPasswordInstructions(email, link string) error {
	m := es.resetPasswordMessage(email, link)
	if err := es.dialer.DialAndSend(m); err != nil {
		return errors.Wrap(err, "failed to send reset password instructions")
	}

	es.log.WithField("to", email).Info("reset password instructions sent")
	return nil
}

func (es *EmailService) SendPasswordChanged(email string) error {
	m := es.passwordChangedMessage(email)
	if err := es.dialer.DialAndSend(m); err != nil {
		return errors.Wrap(err, "failed to send password change notification")
	}

	es.log.WithField("to", email).Info("password change notification sent")
	return nil
}

func (es *EmailService) newMessage(to, subject string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", es.config.FromName, es.config.FromEmail))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	return m
}

func (es *EmailService) resetPasswordMessage(email, link string) *gomail.Message {
	m := es.newMessage(email, "Reset password instructions")

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body>
    <p>Hello %s!</p>
    <p>Someone has requested a link to change your password. You can do this through the link below.</p>
    <p><a href="%s">Change my password</a></p>
    <p>If you didn't request this, please ignore this email.</p>
    <p>Your password won't change until you access the link above and create a new one.</p>
</body>
</html>
`, email, link)

	textBody := fmt.Sprintf(`
Hello %s!

Someone has requested a link to change your password. You can do this through the link below.

%s

If you didn't request this, please ignore this email.
Your password won't change until you access the link above and create a new one.
`, email, link)

	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)
	return m
}

func (es *EmailService) passwordChangedMessage(email string) *gomail.Message {
	m := es.newMessage(email, "Password Changed")

	textBody := fmt.Sprintf(`
Hello %s!

We're contacting you to notify you that your password has been changed.
`, email)

	m.SetBody("text/plain", textBody)
	return m
}
