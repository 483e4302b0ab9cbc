package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"bikes-api/middleware"
	"bikes-api/models"
	"bikes-api/services"
	"bikes-api/utils"
)

// authenticator is shared by the controllers that end up signing a user in.
type authenticator struct {
	auth     *services.AuthService
	sessions *services.SessionService
}

func (a authenticator) signIn(c *gin.Context, user *models.User, remember bool) error {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	token, _, err := a.sessions.Start(ctx, user.ID, remember, ip, c.Request.UserAgent())
	if err != nil {
		return err
	}
	if err := a.auth.TrackSignIn(ctx, user, ip, remember); err != nil {
		return err
	}

	maxAge := 0
	if remember {
		maxAge = int(services.RememberTTL.Seconds())
	}
	utils.SetCookie(c, services.SessionCookieName, token, maxAge)

	middleware.Logger(c).WithField("user_id", user.ID).Info("user signed in")
	return nil
}

type SessionController struct {
	authenticator
}

func NewSessionController(auth *services.AuthService, sessions *services.SessionService) *SessionController {
	return &SessionController{authenticator{auth: auth, sessions: sessions}}
}

func (sc *SessionController) New(c *gin.Context) {
	render(c, http.StatusOK, "sessions/new", "Log in", gin.H{"Email": ""})
}

func (sc *SessionController) Create(c *gin.Context) {
	email := c.PostForm("user[email]")
	password := c.PostForm("user[password]")
	remember := c.PostForm("user[remember_me]") == "1"

	user, err := sc.auth.Authenticate(c.Request.Context(), email, password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		middleware.Logger(c).Warn("sign in rejected")
		utils.FlashNow(c, "", "Invalid Email or password.")
		render(c, http.StatusUnauthorized, "sessions/new", "Log in", gin.H{"Email": email})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	if err := sc.signIn(c, user, remember); err != nil {
		fail(c, err)
		return
	}
	utils.SetFlash(c, "Signed in successfully.", "")
	c.Redirect(http.StatusFound, utils.TakeReturnTo(c, "/"))
}

// Destroy signs out. The server-side session is deleted so the cookie stops
// working even if it was copied elsewhere.
func (sc *SessionController) Destroy(c *gin.Context) {
	if token, err := c.Cookie(services.SessionCookieName); err == nil && token != "" {
		err := sc.sessions.End(c.Request.Context(), token)
		if err != nil && !errors.Is(err, services.ErrInvalidSession) {
			middleware.Logger(c).WithError(err).Warn("session delete failed")
		}
	}
	utils.ClearCookie(c, services.SessionCookieName)

	utils.SetFlash(c, "Signed out successfully.", "")
	c.Redirect(http.StatusFound, "/")
}
