// Package server is a local stand-in for the hosted identity provider. It
// speaks the subset of the Auth0 protocol the coffee shop uses so the
// development record can be exercised without a tenant.
package server

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/46labs/coffeeshop/pkg/config"
	"github.com/46labs/coffeeshop/pkg/templates"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const tokenTTL = time.Hour

// grant is an authorization code waiting to be exchanged.
type grant struct {
	user        config.User
	clientID    string
	redirectURI string
	audience    string
	nonce       string
	challenge   string
}

type Server struct {
	cfg        *config.Config
	privateKey *rsa.PrivateKey
	keyID      string
	templates  *templates.Loader

	mu       sync.Mutex
	sessions map[string]url.Values
	grants   map[string]grant
}

func New(cfg *config.Config) (*Server, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}

	tmpl, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	return &Server{
		cfg:        cfg,
		privateKey: key,
		keyID:      uuid.NewString(),
		templates:  tmpl,
		sessions:   make(map[string]url.Values),
		grants:     make(map[string]grant),
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/.well-known/openid-configuration", s.handleDiscovery)
	r.Get("/.well-known/jwks.json", s.handleJWKS)
	r.Get("/authorize", s.handleAuthorizePage)
	r.Post("/authorize", s.handleAuthorizeSubmit)
	r.Post("/oauth/token", s.handleToken)
	r.Options("/oauth/token", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/userinfo", s.handleUserInfo)
	r.Get("/v2/logout", s.handleLogout)

	r.Route("/api/v2", func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/clients/{id}", s.handleGetClient)
		r.Get("/resource-servers/{id}", s.handleGetResourceServer)
	})

	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Provider.Port)
	log.WithFields(log.Fields{
		"addr":   addr,
		"issuer": s.cfg.Provider.Issuer,
	}).Info("starting identity provider")
	return http.ListenAndServe(addr, s.Handler())
}

// Issuer returns the configured issuer with exactly one trailing slash.
func (s *Server) Issuer() string {
	return strings.TrimSuffix(s.cfg.Provider.Issuer, "/") + "/"
}

// SetIssuer rebinds the issuer for listeners whose address is only known
// after they start. Call it before serving requests.
func (s *Server) SetIssuer(issuer string) {
	s.cfg.Provider.Issuer = issuer
}

func (s *Server) generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Server) findUser(email string) (config.User, bool) {
	for _, u := range s.cfg.Provider.Users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return config.User{}, false
}

func (s *Server) findApplication(clientID string) (config.Application, bool) {
	for _, app := range s.cfg.Provider.Applications {
		if app.ClientID == clientID {
			return app, true
		}
	}
	return config.Application{}, false
}

func (s *Server) findAPI(id string) (config.API, bool) {
	for _, api := range s.cfg.Provider.APIs {
		if api.ID == id || api.Identifier == id {
			return api, true
		}
	}
	return config.API{}, false
}

// callbackAllowed requires redirectURI to equal a registered callback.
func callbackAllowed(app config.Application, redirectURI string) bool {
	return slices.Contains(app.Callbacks, redirectURI)
}

// ManagementAudience is the audience of tokens accepted by /api/v2.
func (s *Server) ManagementAudience() string {
	return s.Issuer() + "api/v2/"
}

func (s *Server) SignToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID
	return token.SignedString(s.privateKey)
}

// AccessToken mints an access token for user, scoped to audience.
func (s *Server) AccessToken(user config.User, audience, clientID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":         user.ID,
		"iss":         s.Issuer(),
		"aud":         audience,
		"azp":         clientID,
		"exp":         now.Add(tokenTTL).Unix(),
		"iat":         now.Unix(),
		"scope":       "openid profile email",
		"permissions": user.Permissions,
	}
	if user.Permissions == nil {
		claims["permissions"] = []string{}
	}
	return s.SignToken(claims)
}
