package middleware

import (
	"net/http"
	"strings"
)

// MethodOverride lets HTML forms, which can only POST, reach PATCH, PUT and
// DELETE routes through a "_method" form field or the X-HTTP-Method-Override
// header. It wraps the router because the method has to change before routing.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			override := r.Header.Get("X-HTTP-Method-Override")
			if override == "" && isFormPost(r) {
				override = r.PostFormValue("_method")
			}

			switch method := strings.ToUpper(override); method {
			case http.MethodPatch, http.MethodPut, http.MethodDelete:
				r.Method = method
			}
		}

		next.ServeHTTP(w, r)
	})
}

func isFormPost(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
