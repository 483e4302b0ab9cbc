package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"bikes-api/models"
	"bikes-api/services"
	"bikes-api/utils"
)

const (
	currentUserKey = "current_user"
	sessionKey     = "session"

	SignInPath = "/users/sign_in"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.UserSession, error)
}

type UserLoader interface {
	User(ctx context.Context, id uint) (*models.User, error)
}

// LoadSession resolves the session cookie, if any, into the current user.
// A cookie that no longer resolves is cleared; the request continues
// anonymously either way.
func LoadSession(sessions SessionResolver, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(services.SessionCookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		session, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if err != services.ErrInvalidSession {
				Logger(c).WithError(err).Warn("session lookup failed")
			}
			utils.ClearCookie(c, services.SessionCookieName)
			c.Next()
			return
		}

		user, err := users.User(c.Request.Context(), session.UserID)
		if err != nil {
			Logger(c).WithError(err).WithField("user_id", session.UserID).Warn("session user not found")
			utils.ClearCookie(c, services.SessionCookieName)
			c.Next()
			return
		}

		c.Set(sessionKey, session)
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireHTMLSession is the auth gate. JSON requests pass untouched; HTML
// requests without a signed-in user are sent to the sign-in page.
func RequireHTMLSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if WantsJSON(c) || CurrentUser(c) != nil {
			c.Next()
			return
		}

		RedirectToSignIn(c)
		c.Abort()
	}
}

// RedirectToSignIn remembers a GET target and redirects to the sign-in form.
func RedirectToSignIn(c *gin.Context) {
	if c.Request.Method == http.MethodGet {
		utils.StoreReturnTo(c, c.Request.URL.RequestURI())
	}
	utils.SetFlash(c, "", "You need to sign in or sign up before continuing.")
	c.Redirect(http.StatusFound, SignInPath)
}

// CurrentUser returns the signed-in user or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(currentUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentSession returns the live session or nil.
func CurrentSession(c *gin.Context) *models.UserSession {
	if v, ok := c.Get(sessionKey); ok {
		if session, ok := v.(*models.UserSession); ok {
			return session
		}
	}
	return nil
}

// RequireNoSession keeps signed-in users away from the sign-in, sign-up and
// password recovery pages.
func RequireNoSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.Next()
			return
		}

		utils.SetFlash(c, "", "You are already signed in.")
		c.Redirect(http.StatusFound, "/")
		c.Abort()
	}
}
