package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

func init() {
	env := Current()
	viper.SetDefault("api_server_url", env.APIServerURL)
	viper.SetDefault("auth.domain", env.Auth.Domain)
	viper.SetDefault("auth.audience", env.Auth.Audience)
	viper.SetDefault("auth.client_id", env.Auth.ClientID)
	viper.SetDefault("auth.callback_url", env.Auth.CallbackURL)
	viper.SetDefault("log_level", "info")

	viper.SetDefault("provider.issuer", "http://localhost:4646/")
	viper.SetDefault("provider.port", 4646)
	viper.SetDefault("provider.branding.serviceName", "Coffee Shop")
	viper.SetDefault("provider.branding.primaryColor", "#6f4e37")
	viper.SetDefault("provider.branding.title", "Sign In")
	viper.SetDefault("provider.branding.subtitle", "Enter your email address")

	viper.SetEnvPrefix("coffeeshop")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/config")
	viper.AddConfigPath(".")

	_ = viper.ReadInConfig()
}

type Option func(*Config)

func WithEnvironment(env Environment) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

func WithProvider(p Provider) Option {
	return func(c *Config) {
		c.Provider = p
	}
}

// Load builds the runtime configuration. The compiled record supplies the
// defaults; config.yaml and COFFEESHOP_* variables may replace the
// placeholders per deployment. The build mode itself is never overridden.
func Load(opts ...Option) (*Config, error) {
	cfg := &Config{
		Environment: Environment{
			Production:   Current().Production,
			APIServerURL: viper.GetString("api_server_url"),
			Auth: Auth{
				Domain:      viper.GetString("auth.domain"),
				Audience:    viper.GetString("auth.audience"),
				ClientID:    viper.GetString("auth.client_id"),
				CallbackURL: viper.GetString("auth.callback_url"),
			},
		},
		Provider: Provider{
			Issuer:      viper.GetString("provider.issuer"),
			Port:        viper.GetInt("provider.port"),
			CORSOrigins: viper.GetStringSlice("provider.corsOrigins"),
			Branding: Branding{
				ServiceName:  viper.GetString("provider.branding.serviceName"),
				LogoURL:      viper.GetString("provider.branding.logoUrl"),
				PrimaryColor: viper.GetString("provider.branding.primaryColor"),
				Title:        viper.GetString("provider.branding.title"),
				Subtitle:     viper.GetString("provider.branding.subtitle"),
			},
		},
		LogLevel: viper.GetString("log_level"),
	}

	if len(cfg.Provider.CORSOrigins) == 0 {
		cfg.Provider.CORSOrigins = []string{"*"}
	}

	if err := viper.UnmarshalKey("provider.users", &cfg.Provider.Users); err != nil {
		return nil, fmt.Errorf("unmarshal users: %w", err)
	}

	if err := viper.UnmarshalKey("provider.applications", &cfg.Provider.Applications); err != nil {
		return nil, fmt.Errorf("unmarshal applications: %w", err)
	}

	if err := viper.UnmarshalKey("provider.apis", &cfg.Provider.APIs); err != nil {
		return nil, fmt.Errorf("unmarshal apis: %w", err)
	}

	for _, opt := range opts {
		opt(cfg)
	}

	// The local provider always knows the application and API the record
	// points at, so a fresh checkout can log in without a config file.
	cfg.Provider.Applications = ensureApplication(cfg.Provider.Applications, cfg.Environment.Auth)
	cfg.Provider.APIs = ensureAPI(cfg.Provider.APIs, cfg.Environment.Auth)

	return cfg, nil
}

func ensureApplication(apps []Application, auth Auth) []Application {
	for _, app := range apps {
		if app.ClientID == auth.ClientID {
			return apps
		}
	}
	return append(apps, Application{
		ClientID:          auth.ClientID,
		Name:              "Coffee Shop Frontend",
		Callbacks:         []string{auth.CallbackURL, auth.CallbackURL + UserPagePath},
		AllowedLogoutURLs: []string{auth.CallbackURL},
		WebOrigins:        []string{auth.CallbackURL},
	})
}

func ensureAPI(apis []API, auth Auth) []API {
	for _, api := range apis {
		if api.Identifier == auth.Audience {
			return apis
		}
	}
	return append(apis, API{
		ID:         "api_" + auth.Audience,
		Identifier: auth.Audience,
		Name:       "Drinks API",
		Scopes: []Scope{
			{Value: "get:drinks-detail", Description: "Read drink recipes"},
			{Value: "post:drinks", Description: "Create drinks"},
			{Value: "patch:drinks", Description: "Edit drinks"},
			{Value: "delete:drinks", Description: "Delete drinks"},
		},
	})
}

// Validate reports every malformed field of the loaded environment. The
// compiled record is plain data; overrides are what get checked here.
func (c *Config) Validate() error {
	return validateEnvironment(c.Environment)
}

func validateEnvironment(e Environment) error {
	var errs []error
	if err := absoluteURL(e.APIServerURL); err != nil {
		errs = append(errs, fmt.Errorf("api_server_url: %w", err))
	}
	if err := absoluteURL(e.Auth.CallbackURL); err != nil {
		errs = append(errs, fmt.Errorf("auth.callback_url: %w", err))
	}
	if strings.TrimSpace(e.Auth.Domain) == "" {
		errs = append(errs, errors.New("auth.domain is required"))
	}
	if strings.TrimSpace(e.Auth.Audience) == "" {
		errs = append(errs, errors.New("auth.audience is required"))
	}
	if strings.TrimSpace(e.Auth.ClientID) == "" {
		errs = append(errs, errors.New("auth.client_id is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func absoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}
