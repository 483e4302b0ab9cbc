package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bikes-api/middleware"
)

type PageController struct{}

func NewPageController() *PageController {
	return &PageController{}
}

// Unprotected is the public landing page.
func (pc *PageController) Unprotected(c *gin.Context) {
	render(c, http.StatusOK, "pages/unprotected", "Home", nil)
}

// Protected serves the single-page client shell, which picks its view from
// the URL path.
func (pc *PageController) Protected(c *gin.Context) {
	render(c, http.StatusOK, "pages/protected", "Bikes", nil)
}

// NoRoute handles every unmatched request. HTML GETs belong to the
// single-page client and need a session; anything else is a 404.
func (pc *PageController) NoRoute(c *gin.Context) {
	if middleware.WantsJSON(c) {
		notFound(c)
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		notFound(c)
		return
	}
	if middleware.CurrentUser(c) == nil {
		middleware.RedirectToSignIn(c)
		return
	}
	pc.Protected(c)
}

func (pc *PageController) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"status":  "healthy",
	})
}
