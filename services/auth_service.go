package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"bikes-api/models"
	"bikes-api/repositories"
	"bikes-api/utils"
)

// ResetPasswordWithin bounds how long a mailed reset link stays usable.
const ResetPasswordWithin = 6 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("reset password token is invalid")
	ErrResetTokenExpired  = errors.New("reset password token has expired")
)

// PasswordCost is the bcrypt cost for new password hashes.
var PasswordCost = bcrypt.DefaultCost

// ValidationErrors maps a field name to its messages.
type ValidationErrors map[string][]string

func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(v))
	for _, field := range fields {
		for _, msg := range v[field] {
			parts = append(parts, field+" "+msg)
		}
	}
	return strings.Join(parts, ", ")
}

// FullMessages renders each error as a sentence, e.g. "Email has already been taken".
func (v ValidationErrors) FullMessages() []string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []string
	for _, field := range fields {
		label := strings.ReplaceAll(field, "_", " ")
		label = strings.ToUpper(label[:1]) + label[1:]
		for _, msg := range v[field] {
			out = append(out, label+" "+msg)
		}
	}
	return out
}

type AuthService struct {
	users  *repositories.UserRepository
	mailer Mailer
	appURL string
	log    *logrus.Logger
	now    func() time.Time
}

func NewAuthService(users *repositories.UserRepository, mailer Mailer, appURL string, log *logrus.Logger) *AuthService {
	return &AuthService{
		users:  users,
		mailer: mailer,
		appURL: strings.TrimRight(appURL, "/"),
		log:    log,
		now:    time.Now,
	}
}

// Register creates a user after checking the email and password rules.
// Rule violations come back as ValidationErrors.
func (s *AuthService) Register(ctx context.Context, email, password, confirmation string) (*models.User, error) {
	email = models.NormalizeEmail(email)

	verrs := ValidationErrors{}
	validatePassword(verrs, password, confirmation)
	switch {
	case email == "":
		verrs.Add("email", "can't be blank")
	case !utils.IsValidEmail(email):
		verrs.Add("email", "is invalid")
	default:
		taken, err := s.users.EmailTaken(ctx, email)
		if err != nil {
			return nil, err
		}
		if taken {
			verrs.Add("email", "has already been taken")
		}
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	user := &models.User{Email: email, EncryptedPassword: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// Authenticate checks the credentials. Unknown email and wrong password both
// yield ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.ByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.EncryptedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// TrackSignIn records a successful sign-in from ip.
func (s *AuthService) TrackSignIn(ctx context.Context, user *models.User, ip string, remember bool) error {
	now := s.now()

	updates := map[string]interface{}{
		"sign_in_count":      user.SignInCount + 1,
		"last_sign_in_at":    user.CurrentSignInAt,
		"last_sign_in_ip":    user.CurrentSignInIP,
		"current_sign_in_at": now,
		"current_sign_in_ip": ip,
	}
	if user.LastSignInAt == nil && user.CurrentSignInAt == nil {
		updates["last_sign_in_at"] = now
		updates["last_sign_in_ip"] = ip
	}
	if remember {
		updates["remember_created_at"] = now
	}

	return s.users.Update(ctx, user, updates)
}

func (s *AuthService) User(ctx context.Context, id uint) (*models.User, error) {
	return s.users.ByID(ctx, id)
}

// SendResetPasswordInstructions mails a reset link when email belongs to a
// user. Unknown addresses are ignored so callers can't probe for accounts.
func (s *AuthService) SendResetPasswordInstructions(ctx context.Context, email string) error {
	user, err := s.users.ByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		s.log.Debug("reset password requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	raw, err := newResetToken()
	if err != nil {
		return err
	}

	err = s.users.Update(ctx, user, map[string]interface{}{
		"reset_password_token":   digestToken(raw),
		"reset_password_sent_at": s.now(),
	})
	if err != nil {
		return err
	}

	link := s.appURL + "/users/password/edit?reset_password_token=" + url.QueryEscape(raw)
	return s.mailer.SendResetPasswordInstructions(user.Email, link)
}

// ResetPassword sets a new password for the holder of a valid reset token and
// consumes the token.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, password, confirmation string) (*models.User, error) {
	if rawToken == "" {
		return nil, ErrInvalidResetToken
	}

	user, err := s.users.ByResetPasswordToken(ctx, digestToken(rawToken))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}
	if user.ResetPasswordSentAt == nil || s.now().Sub(*user.ResetPasswordSentAt) > ResetPasswordWithin {
		return nil, ErrResetTokenExpired
	}

	verrs := ValidationErrors{}
	validatePassword(verrs, password, confirmation)
	if len(verrs) > 0 {
		return nil, verrs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	err = s.users.Update(ctx, user, map[string]interface{}{
		"encrypted_password":     string(hash),
		"reset_password_token":   nil,
		"reset_password_sent_at": nil,
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendPasswordChanged(user.Email); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("password change notification failed")
	}
	return user, nil
}

func validatePassword(verrs ValidationErrors, password, confirmation string) {
	switch {
	case password == "":
		verrs.Add("password", "can't be blank")
	case len(password) < utils.MinPasswordLength:
		verrs.Add("password", "is too short (minimum is 6 characters)")
	case !utils.IsValidPassword(password):
		verrs.Add("password", "is too long (maximum is 128 characters)")
	}
	if password != confirmation {
		verrs.Add("password_confirmation", "doesn't match Password")
	}
}

func newResetToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate reset token")
	}
	return hex.EncodeToString(b), nil
}

func digestToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
