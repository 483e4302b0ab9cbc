package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bikes-api/middleware"
	"bikes-api/utils"
)

// render writes an HTML page inside the layout. Every page gets the signed-in
// user and the pending flash next to its own data.
func render(c *gin.Context, status int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Flash"] = utils.TakeFlash(c)
	if user := middleware.CurrentUser(c); user != nil {
		data["CurrentUser"] = user
	}
	c.HTML(status, name, data)
}

func notFound(c *gin.Context) {
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
		return
	}
	render(c, http.StatusNotFound, "errors/404", "Not Found", nil)
}

func notAcceptable(c *gin.Context) {
	c.JSON(http.StatusNotAcceptable, gin.H{"error": "Not Acceptable"})
}

func badRequest(c *gin.Context, msg string) {
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	render(c, http.StatusBadRequest, "errors/422", "Bad Request", gin.H{"Message": msg})
}

// fail hands err to the error handler middleware, which logs it and answers 500.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
