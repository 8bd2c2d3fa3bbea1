package server

import (
	"net/http"
	"slices"
	"strings"
)

// cors lets the frontend call the provider from the browser. An origin is
// accepted when it is listed in the provider's CORS origins or registered as
// a web origin of any application.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin, ok := s.allowedOrigin(r.Header.Get("Origin")); ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) (string, bool) {
	for _, allowed := range s.cfg.Provider.CORSOrigins {
		switch {
		case allowed == "*" && origin == "":
			return "*", true
		case allowed == "*" || allowed == origin:
			return origin, true
		case strings.HasPrefix(allowed, "*.") && strings.HasSuffix(origin, allowed[1:]):
			return origin, true
		}
	}

	if origin == "" {
		return "", false
	}
	for _, app := range s.cfg.Provider.Applications {
		if slices.Contains(app.WebOrigins, origin) {
			return origin, true
		}
	}
	return "", false
}
