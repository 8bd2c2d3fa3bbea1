package config

import "strings"

// Auth holds the identity provider connection parameters of a build.
type Auth struct {
	// Domain is the tenant prefix, e.g. "udacity-cool-coffeeshop.us".
	Domain string `json:"domain" yaml:"domain" mapstructure:"domain"`
	// Audience is the API identifier registered with the provider.
	Audience    string `json:"audience" yaml:"audience" mapstructure:"audience"`
	ClientID    string `json:"client_id" yaml:"client_id" mapstructure:"client_id"`
	CallbackURL string `json:"callback_url" yaml:"callback_url" mapstructure:"callback_url"` // must be an allowed callback
}

// UserPagePath is where the frontend asks to land after login. Providers
// match callbacks exactly, so it is registered next to the bare callback.
const UserPagePath = "/tabs/user-page"

// TenantURL returns the provider base URL for the domain prefix.
func (a Auth) TenantURL() string {
	domain := strings.TrimSuffix(a.Domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain + ".auth0.com"
}

// Environment is the record compiled into a build. Values are passed by
// copy so holders cannot change what other components see.
type Environment struct {
	Production   bool   `json:"production" yaml:"production" mapstructure:"production"`
	APIServerURL string `json:"api_server_url" yaml:"api_server_url" mapstructure:"api_server_url"`
	Auth         Auth   `json:"auth" yaml:"auth" mapstructure:"auth"`
}

// Mode names the build mode of the record.
func (e Environment) Mode() string {
	if e.Production {
		return "production"
	}
	return "development"
}

type User struct {
	ID            string   `json:"user_id" yaml:"user_id" mapstructure:"user_id"`
	Email         string   `json:"email" yaml:"email" mapstructure:"email"`
	Name          string   `json:"name" yaml:"name" mapstructure:"name"`
	EmailVerified bool     `json:"email_verified" yaml:"email_verified" mapstructure:"email_verified"`
	Picture       string   `json:"picture,omitempty" yaml:"picture,omitempty" mapstructure:"picture"`
	Permissions   []string `json:"permissions,omitempty" yaml:"permissions,omitempty" mapstructure:"permissions"` // e.g. "get:drinks-detail", "post:drinks"
}

// Application is a client registered with the local provider.
type Application struct {
	ClientID          string   `json:"client_id" yaml:"client_id" mapstructure:"client_id"`
	ClientSecret      string   `json:"client_secret,omitempty" yaml:"client_secret,omitempty" mapstructure:"client_secret"`
	Name              string   `json:"name" yaml:"name" mapstructure:"name"`
	Callbacks         []string `json:"callbacks,omitempty" yaml:"callbacks,omitempty" mapstructure:"callbacks"`
	AllowedLogoutURLs []string `json:"allowed_logout_urls,omitempty" yaml:"allowed_logout_urls,omitempty" mapstructure:"allowed_logout_urls"`
	WebOrigins        []string `json:"web_origins,omitempty" yaml:"web_origins,omitempty" mapstructure:"web_origins"`
}

type Scope struct {
	Value       string `json:"value" yaml:"value" mapstructure:"value"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// API is a resource server (audience) registered with the local provider.
type API struct {
	ID         string  `json:"id" yaml:"id" mapstructure:"id"`
	Identifier string  `json:"identifier" yaml:"identifier" mapstructure:"identifier"`
	Name       string  `json:"name" yaml:"name" mapstructure:"name"`
	Scopes     []Scope `json:"scopes,omitempty" yaml:"scopes,omitempty" mapstructure:"scopes"`
}

type Branding struct {
	ServiceName  string
	LogoURL      string
	PrimaryColor string
	Title        string
	Subtitle     string
}

// Provider configures the local identity provider.
type Provider struct {
	Issuer       string
	Port         int
	CORSOrigins  []string
	Users        []User
	Applications []Application
	APIs         []API
	Branding     Branding
}

type Config struct {
	Environment Environment
	Provider    Provider
	LogLevel    string
}
