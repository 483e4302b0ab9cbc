package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	FormatHTML = "html"
	FormatJSON = "json"

	formatKey = "format"
)

// DetectFormat decides once per request whether the client wants HTML or
// JSON. A ".json" path suffix wins over the Accept header, and the suffix is
// removed from the :id param.
func DetectFormat() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(formatKey, RequestFormat(c.Request))

		for i, p := range c.Params {
			if p.Key == "id" {
				c.Params[i].Value = strings.TrimSuffix(p.Value, ".json")
			}
		}

		c.Next()
	}
}

// RequestFormat inspects the path extension, then the first recognised media
// type in Accept. Anything else is HTML.
func RequestFormat(r *http.Request) string {
	if strings.HasSuffix(r.URL.Path, ".json") {
		return FormatJSON
	}

	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mediaType {
		case "application/json":
			return FormatJSON
		case "text/html", "application/xhtml+xml":
			return FormatHTML
		}
	}
	return FormatHTML
}

// Format returns the format chosen by DetectFormat.
func Format(c *gin.Context) string {
	if f := c.GetString(formatKey); f != "" {
		return f
	}
	return RequestFormat(c.Request)
}

func WantsJSON(c *gin.Context) bool {
	return Format(c) == FormatJSON
}
