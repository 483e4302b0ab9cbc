package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"bikes-api/middleware"
	"bikes-api/services"
	"bikes-api/utils"
)

const (
	resetInstructionsSent = "If your email address exists in our database, you will receive a password recovery link at your email address in a few minutes."
	resetTokenMissing     = "You can't access this page without coming from a password reset email. If you do come from a password reset email, please make sure you used the full URL provided."
)

// PasswordController runs the forgot-password flow: request a mailed link,
// then choose a new password with the token it carries.
type PasswordController struct {
	authenticator
}

func NewPasswordController(auth *services.AuthService, sessions *services.SessionService) *PasswordController {
	return &PasswordController{authenticator{auth: auth, sessions: sessions}}
}

func (pc *PasswordController) New(c *gin.Context) {
	render(c, http.StatusOK, "passwords/new", "Forgot your password?", gin.H{"Email": ""})
}

// Create always answers the same way so the form can't be used to find out
// which addresses have accounts.
func (pc *PasswordController) Create(c *gin.Context) {
	if err := pc.auth.SendResetPasswordInstructions(c.Request.Context(), c.PostForm("user[email]")); err != nil {
		middleware.Logger(c).WithError(err).Error("reset password instructions not sent")
	}

	utils.SetFlash(c, resetInstructionsSent, "")
	c.Redirect(http.StatusFound, middleware.SignInPath)
}

func (pc *PasswordController) Edit(c *gin.Context) {
	token := c.Query("reset_password_token")
	if token == "" {
		utils.SetFlash(c, "", resetTokenMissing)
		c.Redirect(http.StatusFound, middleware.SignInPath)
		return
	}
	render(c, http.StatusOK, "passwords/edit", "Change your password", gin.H{"Token": token})
}

func (pc *PasswordController) Update(c *gin.Context) {
	token := c.PostForm("user[reset_password_token]")

	user, err := pc.auth.ResetPassword(c.Request.Context(), token,
		c.PostForm("user[password]"), c.PostForm("user[password_confirmation]"))

	var verrs services.ValidationErrors
	switch {
	case errors.Is(err, services.ErrInvalidResetToken):
		pc.rejected(c, token, []string{"Reset password token is invalid"})
		return
	case errors.Is(err, services.ErrResetTokenExpired):
		pc.rejected(c, token, []string{"Reset password token has expired, please request a new one"})
		return
	case errors.As(err, &verrs):
		pc.rejected(c, token, verrs.FullMessages())
		return
	case err != nil:
		fail(c, err)
		return
	}

	if err := pc.signIn(c, user, false); err != nil {
		fail(c, err)
		return
	}
	utils.SetFlash(c, "Your password has been changed successfully. You are now signed in.", "")
	c.Redirect(http.StatusFound, "/")
}

func (pc *PasswordController) rejected(c *gin.Context, token string, errs []string) {
	render(c, http.StatusUnprocessableEntity, "passwords/edit", "Change your password", gin.H{
		"Token":  token,
		"Errors": errs,
	})
}
