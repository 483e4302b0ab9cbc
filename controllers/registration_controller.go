package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"bikes-api/services"
	"bikes-api/utils"
)

type RegistrationController struct {
	authenticator
}

func NewRegistrationController(auth *services.AuthService, sessions *services.SessionService) *RegistrationController {
	return &RegistrationController{authenticator{auth: auth, sessions: sessions}}
}

func (rc *RegistrationController) New(c *gin.Context) {
	render(c, http.StatusOK, "registrations/new", "Sign up", gin.H{"Email": ""})
}

func (rc *RegistrationController) Create(c *gin.Context) {
	email := c.PostForm("user[email]")

	user, err := rc.auth.Register(c.Request.Context(), email,
		c.PostForm("user[password]"), c.PostForm("user[password_confirmation]"))

	var verrs services.ValidationErrors
	if errors.As(err, &verrs) {
		render(c, http.StatusUnprocessableEntity, "registrations/new", "Sign up", gin.H{
			"Email":  email,
			"Errors": verrs.FullMessages(),
		})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	if err := rc.signIn(c, user, false); err != nil {
		fail(c, err)
		return
	}
	utils.SetFlash(c, "Welcome! You have signed up successfully.", "")
	c.Redirect(http.StatusFound, utils.TakeReturnTo(c, "/"))
}
