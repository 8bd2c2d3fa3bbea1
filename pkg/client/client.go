// Package client asks the identity provider's management API whether the
// application and API named in a build record are registered as expected.
package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/46labs/coffeeshop/pkg/config"
	"github.com/auth0/go-auth0/management"
	log "github.com/sirupsen/logrus"
)

type Client struct {
	mgmt *management.Management
}

type Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	// Token skips the client credentials exchange when set.
	Token    string
	Insecure bool
}

func New(cfg Config) (*Client, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("domain is required")
	}

	// WithInsecure switches to http and installs a placeholder token, so it
	// goes first and the credential option below replaces the token.
	var opts []management.Option
	if cfg.Insecure {
		opts = append(opts, management.WithInsecure())
	}

	switch {
	case cfg.Token != "":
		opts = append(opts, management.WithStaticToken(cfg.Token))
	case cfg.ClientID == "":
		return nil, fmt.Errorf("client_id is required")
	case cfg.ClientSecret == "":
		return nil, fmt.Errorf("client_secret is required")
	default:
		opts = append(opts, management.WithClientCredentials(context.Background(), cfg.ClientID, cfg.ClientSecret))
	}

	mgmt, err := management.New(strings.TrimSuffix(cfg.Domain, "/"), opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing auth0 management client: %w", err)
	}

	return &Client{mgmt: mgmt}, nil
}

// Report lists what the provider knows about a build record.
type Report struct {
	Mode               string
	ClientID           string
	ClientRegistered   bool
	CallbackURL        string
	CallbackAllowed    bool
	LogoutAllowed      bool
	Audience           string
	AudienceRegistered bool
	Scopes             []string
}

func (r *Report) OK() bool {
	return r.ClientRegistered && r.CallbackAllowed && r.AudienceRegistered
}

// Problems describes every failed check, in a stable order.
func (r *Report) Problems() []string {
	var problems []string
	if !r.ClientRegistered {
		problems = append(problems, fmt.Sprintf("client %q is not registered", r.ClientID))
	} else {
		if !r.CallbackAllowed {
			problems = append(problems, fmt.Sprintf("callback %q is not an allowed callback of client %q", r.CallbackURL, r.ClientID))
		}
		if !r.LogoutAllowed {
			problems = append(problems, fmt.Sprintf("callback %q is not an allowed logout url of client %q", r.CallbackURL, r.ClientID))
		}
	}
	if !r.AudienceRegistered {
		problems = append(problems, fmt.Sprintf("audience %q is not a registered api", r.Audience))
	}
	return problems
}

func isNotFound(err error) bool {
	var mErr management.Error
	return errors.As(err, &mErr) && mErr.Status() == 404
}

// CheckRegistration compares env against the provider. Missing objects are
// reported, not returned as errors; transport and auth failures are errors.
func (c *Client) CheckRegistration(ctx context.Context, env config.Environment) (*Report, error) {
	report := &Report{
		Mode:        env.Mode(),
		ClientID:    env.Auth.ClientID,
		CallbackURL: env.Auth.CallbackURL,
		Audience:    env.Auth.Audience,
	}

	app, err := c.mgmt.Client.Read(ctx, env.Auth.ClientID)
	switch {
	case isNotFound(err):
	case err != nil:
		return nil, fmt.Errorf("reading client: %w", err)
	default:
		report.ClientRegistered = true
		report.CallbackAllowed = urlListed(app.Callbacks, env.Auth.CallbackURL)
		report.LogoutAllowed = urlListed(app.AllowedLogoutURLs, env.Auth.CallbackURL)
	}

	api, err := c.mgmt.ResourceServer.Read(ctx, env.Auth.Audience)
	switch {
	case isNotFound(err):
	case err != nil:
		return nil, fmt.Errorf("reading resource server: %w", err)
	default:
		report.AudienceRegistered = api.GetIdentifier() == env.Auth.Audience
		if api.Scopes != nil {
			for _, scope := range *api.Scopes {
				report.Scopes = append(report.Scopes, scope.GetValue())
			}
		}
	}

	log.WithFields(log.Fields{
		"mode":      report.Mode,
		"client_id": report.ClientID,
		"audience":  report.Audience,
		"ok":        report.OK(),
	}).Info("checked registration")

	return report, nil
}

// urlListed reports whether target is in list, compared byte for byte like
// the hosted tenant does.
func urlListed(list *[]string, target string) bool {
	return list != nil && slices.Contains(*list, target)
}
