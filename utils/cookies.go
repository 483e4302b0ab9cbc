package utils

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

const (
	flashCookieName    = "_bikes_flash"
	returnToCookieName = "_bikes_return_to"

	flashKey = "flash"
)

// Flash holds the one-shot messages shown on the next rendered page.
type Flash struct {
	Notice string
	Alert  string
}

func (f Flash) Empty() bool {
	return f.Notice == "" && f.Alert == ""
}

// SetCookie writes an HttpOnly, SameSite=Lax cookie scoped to the whole app.
// maxAge follows http.Cookie: 0 means a browser-session cookie, <0 deletes.
func SetCookie(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   isSecure(c.Request),
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearCookie(c *gin.Context, name string) {
	SetCookie(c, name, "", -1)
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// SetFlash stores a message for the page shown after the next redirect.
func SetFlash(c *gin.Context, notice, alert string) {
	v := url.Values{}
	if notice != "" {
		v.Set("notice", notice)
	}
	if alert != "" {
		v.Set("alert", alert)
	}
	SetCookie(c, flashCookieName, v.Encode(), 0)
}

// FlashNow sets a message for the page rendered by the current request.
func FlashNow(c *gin.Context, notice, alert string) {
	c.Set(flashKey, Flash{Notice: notice, Alert: alert})
}

// TakeFlash returns and clears the pending flash.
func TakeFlash(c *gin.Context) Flash {
	if v, ok := c.Get(flashKey); ok {
		if f, ok := v.(Flash); ok {
			return f
		}
	}

	raw := rawCookie(c, flashCookieName)
	if raw == "" {
		return Flash{}
	}
	ClearCookie(c, flashCookieName)

	v, err := url.ParseQuery(raw)
	if err != nil {
		return Flash{}
	}
	return Flash{Notice: v.Get("notice"), Alert: v.Get("alert")}
}

// StoreReturnTo remembers where to send the user after signing in.
func StoreReturnTo(c *gin.Context, path string) {
	SetCookie(c, returnToCookieName, url.QueryEscape(path), 0)
}

// TakeReturnTo returns the remembered local path or fallback.
func TakeReturnTo(c *gin.Context, fallback string) string {
	raw := rawCookie(c, returnToCookieName)
	if raw == "" {
		return fallback
	}
	ClearCookie(c, returnToCookieName)

	path, err := url.QueryUnescape(raw)
	if err != nil || !isLocalPath(path) {
		return fallback
	}
	return path
}

// rawCookie reads a cookie without the unescaping gin's c.Cookie applies.
func rawCookie(c *gin.Context, name string) string {
	ck, err := c.Request.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func isLocalPath(path string) bool {
	return len(path) > 0 && path[0] == '/' && (len(path) == 1 || (path[1] != '/' && path[1] != '\\'))
}
