package http

import (
	"net/http"
	"strings"
)

// routeMethods are the methods any registered route may use.
var routeMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// NotFoundHandler is the catch-all for mux. A path that mux serves under
// another method gets a JSON 405 with Allow; anything else a JSON 404.
func NotFoundHandler(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := allowedMethods(mux, r); len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}

func allowedMethods(mux *http.ServeMux, r *http.Request) []string {
	var allowed []string
	for _, m := range routeMethods {
		if m == r.Method {
			continue
		}
		candidate := r.WithContext(r.Context())
		candidate.Method = m
		if _, pattern := mux.Handler(candidate); pattern != "" && pattern != "/" {
			allowed = append(allowed, m)
		}
	}
	return allowed
}
