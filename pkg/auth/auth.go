// Package auth turns the identity provider parameters of a build into
// login and logout links, and checks the access tokens the provider issues.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/46labs/coffeeshop/pkg/config"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var (
	ErrNoToken      = errors.New("no access token")
	ErrInvalidToken = errors.New("invalid access token")
	ErrForbidden    = errors.New("permission not granted")
)

// Claims are the access token claims the drinks API relies on.
type Claims struct {
	jwt.RegisteredClaims
	Scope       string   `json:"scope,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Can reports whether the token carries the permission, e.g. "post:drinks".
func (c *Claims) Can(permission string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Permissions, permission)
}

// Require returns ErrForbidden unless the token carries the permission.
func (c *Claims) Require(permission string) error {
	if !c.Can(permission) {
		return fmt.Errorf("%w: %s", ErrForbidden, permission)
	}
	return nil
}

type Authenticator struct {
	auth      config.Auth
	tenantURL string

	once     sync.Once
	verifier *oidc.IDTokenVerifier
}

type Option func(*Authenticator)

// WithTenantURL points the authenticator at a provider other than the
// hosted tenant derived from the domain, e.g. the local provider.
func WithTenantURL(u string) Option {
	return func(a *Authenticator) {
		a.tenantURL = strings.TrimSuffix(u, "/")
	}
}

func New(env config.Environment, opts ...Option) *Authenticator {
	a := &Authenticator{
		auth:      env.Auth,
		tenantURL: env.Auth.TenantURL(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Authenticator) TenantURL() string { return a.tenantURL }

// Issuer is the "iss" value of tokens minted by the tenant.
func (a *Authenticator) Issuer() string { return a.tenantURL + "/" }

func (a *Authenticator) JWKSURL() string { return a.tenantURL + "/.well-known/jwks.json" }

// LoginLink builds the implicit-flow authorize URL. Domain, audience and
// client id are placed verbatim, matching the provider's login URL shape.
func (a *Authenticator) LoginLink(callbackPath string) string {
	var b strings.Builder
	b.WriteString(a.tenantURL)
	b.WriteString("/authorize?")
	b.WriteString("audience=" + a.auth.Audience + "&")
	b.WriteString("response_type=token&")
	b.WriteString("client_id=" + a.auth.ClientID + "&")
	b.WriteString("redirect_uri=" + a.auth.CallbackURL + callbackPath)
	return b.String()
}

func (a *Authenticator) LogoutLink() string {
	q := url.Values{}
	q.Set("client_id", a.auth.ClientID)
	q.Set("returnTo", a.auth.CallbackURL)
	return a.tenantURL + "/v2/logout?" + q.Encode()
}

// OAuth2Config describes the authorization code flow for the same
// application. Clients that can keep a secret set ClientSecret themselves.
func (a *Authenticator) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    a.auth.ClientID,
		RedirectURL: a.auth.CallbackURL,
		Scopes:      []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.tenantURL + "/authorize",
			TokenURL: a.tenantURL + "/oauth/token",
		},
	}
}

func (a *Authenticator) AuthCodeURL(state string) string {
	return a.OAuth2Config().AuthCodeURL(state, oauth2.SetAuthURLParam("audience", a.auth.Audience))
}

// TokenFromCallback extracts the access token the provider appends to the
// callback URL fragment after an implicit-flow login.
func (a *Authenticator) TokenFromCallback(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing callback url: %w", err)
	}
	if u.Fragment == "" {
		return "", ErrNoToken
	}

	values, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return "", fmt.Errorf("parsing callback fragment: %w", err)
	}

	token := values.Get("access_token")
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Verify checks signature, issuer, audience and expiry of an access token
// against the tenant's published keys.
func (a *Authenticator) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	a.once.Do(func() {
		keys := oidc.NewRemoteKeySet(context.WithoutCancel(ctx), a.JWKSURL())
		a.verifier = oidc.NewVerifier(a.Issuer(), keys, &oidc.Config{
			ClientID:             a.auth.Audience,
			SupportedSigningAlgs: []string{oidc.RS256},
		})
	})

	verified, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var claims Claims
	if err := verified.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decoding claims: %w", ErrInvalidToken, err)
	}
	return &claims, nil
}

// Peek decodes the claims without checking the signature. Use it only to
// decide what to show a user; authorization decisions go through Verify.
func Peek(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &claims, nil
}
