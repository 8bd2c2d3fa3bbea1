package server

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
)

func writeManagementError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"statusCode": status,
		"error":      http.StatusText(status),
		"message":    message,
	})
}

// requireBearer admits tokens minted by this server for the management
// audience. Login tokens for the drinks API are refused.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.parseBearer(r)
		if !ok {
			writeManagementError(w, http.StatusUnauthorized, "Missing or invalid bearer token")
			return
		}
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, s.ManagementAudience()) {
			writeManagementError(w, http.StatusUnauthorized, "Bad audience")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	app, ok := s.findApplication(chi.URLParam(r, "id"))
	if !ok {
		writeManagementError(w, http.StatusNotFound, "The client does not exist")
		return
	}

	// Secrets never leave the provider.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"client_id":           app.ClientID,
		"name":                app.Name,
		"callbacks":           nonNil(app.Callbacks),
		"allowed_logout_urls": nonNil(app.AllowedLogoutURLs),
		"web_origins":         nonNil(app.WebOrigins),
	})
}

func (s *Server) handleGetResourceServer(w http.ResponseWriter, r *http.Request) {
	api, ok := s.findAPI(chi.URLParam(r, "id"))
	if !ok {
		writeManagementError(w, http.StatusNotFound, "The resource server does not exist")
		return
	}

	scopes := make([]map[string]string, 0, len(api.Scopes))
	for _, sc := range api.Scopes {
		scopes = append(scopes, map[string]string{
			"value":       sc.Value,
			"description": sc.Description,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         api.ID,
		"identifier": api.Identifier,
		"name":       api.Name,
		"scopes":     scopes,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
