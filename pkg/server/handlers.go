package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

// verificationCode is the one-time code every local user signs in with.
const verificationCode = "123456"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	issuer := s.Issuer()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"issuer":                                issuer,
		"authorization_endpoint":                issuer + "authorize",
		"token_endpoint":                        issuer + "oauth/token",
		"userinfo_endpoint":                     issuer + "userinfo",
		"jwks_uri":                              issuer + ".well-known/jwks.json",
		"end_session_endpoint":                  issuer + "v2/logout",
		"response_types_supported":              []string{"code", "token"},
		"grant_types_supported":                 []string{"authorization_code", "implicit", "client_credentials"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "profile", "email"},
		"code_challenge_methods_supported":      []string{"S256"},
	})
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	pub := &s.privateKey.PublicKey
	jwk := map[string]interface{}{
		"kty": "RSA",
		"kid": s.keyID,
		"use": "sig",
		"alg": "RS256",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys": []interface{}{jwk},
	})
}

func (s *Server) renderLogin(w http.ResponseWriter, sessionID, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.templates.Execute(w, map[string]interface{}{
		"SessionID": sessionID,
		"Branding":  s.cfg.Provider.Branding,
		"Message":   message,
	})
	if err != nil {
		log.WithField("error", err).Error("failed to render login page")
	}
}

func (s *Server) handleAuthorizePage(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	app, ok := s.findApplication(params.Get("client_id"))
	if !ok {
		http.Error(w, "Unknown client", http.StatusBadRequest)
		return
	}

	redirectURI := params.Get("redirect_uri")
	if !callbackAllowed(app, redirectURI) {
		log.WithFields(log.Fields{
			"client_id":    app.ClientID,
			"redirect_uri": redirectURI,
		}).Warn("rejected unregistered callback")
		http.Error(w, "Callback URL mismatch", http.StatusBadRequest)
		return
	}

	switch params.Get("response_type") {
	case "token", "code":
	default:
		http.Error(w, "Unsupported response_type", http.StatusBadRequest)
		return
	}

	sessionID := s.generateID()
	s.mu.Lock()
	s.sessions[sessionID] = params
	s.mu.Unlock()

	s.renderLogin(w, sessionID, "")
}

func (s *Server) handleAuthorizeSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	sessionID := r.FormValue("session_id")
	email := r.FormValue("email")
	code := r.FormValue("code")

	s.mu.Lock()
	params, exists := s.sessions[sessionID]
	s.mu.Unlock()
	if !exists {
		http.Error(w, "Invalid session", http.StatusBadRequest)
		return
	}

	if code == "" {
		s.renderLogin(w, sessionID, "")
		return
	}

	user, found := s.findUser(email)
	if code != verificationCode || !found {
		http.Error(w, "Invalid code", http.StatusBadRequest)
		return
	}

	audience := params.Get("audience")
	if audience == "" {
		audience = s.cfg.Environment.Auth.Audience
	}
	clientID := params.Get("client_id")

	redirectURL, err := url.Parse(params.Get("redirect_uri"))
	if err != nil {
		http.Error(w, "Invalid redirect_uri", http.StatusBadRequest)
		return
	}

	if params.Get("response_type") == "token" {
		accessToken, err := s.AccessToken(user, audience, clientID)
		if err != nil {
			http.Error(w, "Token generation failed", http.StatusInternalServerError)
			return
		}

		fragment := url.Values{}
		fragment.Set("access_token", accessToken)
		fragment.Set("token_type", "Bearer")
		fragment.Set("expires_in", "3600")
		if state := params.Get("state"); state != "" {
			fragment.Set("state", state)
		}
		redirectURL.Fragment = ""
		redirectURL.RawFragment = ""

		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()

		log.WithFields(log.Fields{"user": user.ID, "client_id": clientID}).Info("issued implicit grant")
		http.Redirect(w, r, redirectURL.String()+"#"+fragment.Encode(), http.StatusFound)
		return
	}

	authCode := s.generateID()
	s.mu.Lock()
	s.grants[authCode] = grant{
		user:        user,
		clientID:    clientID,
		redirectURI: params.Get("redirect_uri"),
		audience:    audience,
		nonce:       params.Get("nonce"),
		challenge:   params.Get("code_challenge"),
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	query := redirectURL.Query()
	query.Set("code", authCode)
	if state := params.Get("state"); state != "" {
		query.Set("state", state)
	}
	redirectURL.RawQuery = query.Encode()

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Auth0-Client")

	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form")
		return
	}

	switch r.FormValue("grant_type") {
	case "authorization_code":
		s.exchangeCode(w, r)
	case "client_credentials":
		s.clientCredentials(w, r)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", r.FormValue("grant_type"))
	}
}

func (s *Server) exchangeCode(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")

	s.mu.Lock()
	g, exists := s.grants[code]
	delete(s.grants, code)
	s.mu.Unlock()

	if !exists {
		writeOAuthError(w, http.StatusForbidden, "invalid_grant", "invalid authorization code")
		return
	}

	clientID, _, ok := r.BasicAuth()
	if !ok {
		clientID = r.FormValue("client_id")
	}
	if clientID != g.clientID || r.FormValue("redirect_uri") != g.redirectURI {
		log.WithFields(log.Fields{
			"client_id":    clientID,
			"redirect_uri": r.FormValue("redirect_uri"),
		}).Warn("authorization code presented by another client")
		writeOAuthError(w, http.StatusForbidden, "invalid_grant", "client_id or redirect_uri does not match the authorization request")
		return
	}

	if g.challenge != "" {
		sum := sha256.Sum256([]byte(r.FormValue("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != g.challenge {
			writeOAuthError(w, http.StatusForbidden, "invalid_grant", "code_verifier mismatch")
			return
		}
	}

	accessToken, err := s.AccessToken(g.user, g.audience, g.clientID)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "token generation failed")
		return
	}

	now := time.Now()
	idClaims := jwt.MapClaims{
		"sub":            g.user.ID,
		"email":          g.user.Email,
		"email_verified": g.user.EmailVerified,
		"name":           g.user.Name,
		"iss":            s.Issuer(),
		"aud":            g.clientID,
		"exp":            now.Add(tokenTTL).Unix(),
		"iat":            now.Unix(),
		"auth_time":      now.Unix(),
	}
	if g.user.Picture != "" {
		idClaims["picture"] = g.user.Picture
	}
	if g.nonce != "" {
		idClaims["nonce"] = g.nonce
	}

	idToken, err := s.SignToken(idClaims)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": accessToken,
		"id_token":     idToken,
		"token_type":   "Bearer",
		"expires_in":   int(tokenTTL.Seconds()),
	})
}

func (s *Server) clientCredentials(w http.ResponseWriter, r *http.Request) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.FormValue("client_id")
		clientSecret = r.FormValue("client_secret")
	}

	app, found := s.findApplication(clientID)
	if !found || app.ClientSecret == "" ||
		subtle.ConstantTimeCompare([]byte(app.ClientSecret), []byte(clientSecret)) != 1 {
		writeOAuthError(w, http.StatusUnauthorized, "access_denied", "unauthorized client")
		return
	}

	audience := r.FormValue("audience")
	if audience == "" {
		audience = s.ManagementAudience()
	}

	now := time.Now()
	token, err := s.SignToken(jwt.MapClaims{
		"sub":   clientID + "@clients",
		"iss":   s.Issuer(),
		"aud":   audience,
		"azp":   clientID,
		"gty":   "client-credentials",
		"exp":   now.Add(tokenTTL).Unix(),
		"iat":   now.Unix(),
		"scope": "read:clients read:resource_servers",
	})
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(tokenTTL.Seconds()),
	})
}

// parseBearer validates a token minted by this server.
func (s *Server) parseBearer(r *http.Request) (jwt.MapClaims, bool) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return &s.privateKey.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithIssuer(s.Issuer()))
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.parseBearer(r)
	if !ok {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	sub, _ := claims["sub"].(string)
	for _, u := range s.cfg.Provider.Users {
		if u.ID == sub {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"sub":            u.ID,
				"email":          u.Email,
				"email_verified": u.EmailVerified,
				"name":           u.Name,
				"picture":        u.Picture,
			})
			return
		}
	}
	http.Error(w, "Unknown user", http.StatusNotFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	returnTo := r.URL.Query().Get("returnTo")
	if returnTo == "" {
		http.Redirect(w, r, strings.TrimSuffix(s.Issuer(), "/"), http.StatusFound)
		return
	}

	if clientID := r.URL.Query().Get("client_id"); clientID != "" {
		app, ok := s.findApplication(clientID)
		if !ok || !slices.Contains(app.AllowedLogoutURLs, returnTo) {
			http.Error(w, "returnTo is not an allowed logout URL", http.StatusBadRequest)
			return
		}
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}
