// Package drinks is the HTTP client for the coffee shop drinks API. Every
// request is resolved against the API server URL of the build record.
package drinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/46labs/coffeeshop/pkg/auth"
	"github.com/46labs/coffeeshop/pkg/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type Client struct {
	baseURL string
	http    *http.Client
	tokens  oauth2.TokenSource
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource supplies access tokens for the permissioned endpoints.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithAccessToken uses a fixed token, e.g. one read from a login callback.
func WithAccessToken(token string) Option {
	return WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

func New(env config.Environment, opts ...Option) (*Client, error) {
	u, err := url.Parse(env.APIServerURL)
	if err != nil {
		return nil, fmt.Errorf("parsing api server url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("api server url %q is not absolute", env.APIServerURL)
	}

	c := &Client{
		baseURL: strings.TrimSuffix(env.APIServerURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL prefixes path with the API server URL, joined by exactly one slash.
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// List returns all drinks in the short representation. No login required.
func (c *Client) List(ctx context.Context) ([]Drink, error) {
	env, err := c.do(ctx, http.MethodGet, "/drinks", nil, false)
	if err != nil {
		return nil, err
	}
	return env.Drinks, nil
}

// Detail returns all drinks with ingredient names. Requires get:drinks-detail.
func (c *Client) Detail(ctx context.Context) ([]Drink, error) {
	env, err := c.do(ctx, http.MethodGet, "/drinks-detail", nil, true)
	if err != nil {
		return nil, err
	}
	return env.Drinks, nil
}

// Create adds a drink. Requires post:drinks.
func (c *Client) Create(ctx context.Context, in Input) (*Drink, error) {
	env, err := c.do(ctx, http.MethodPost, "/drinks", in, true)
	if err != nil {
		return nil, err
	}
	if env.Drink != nil {
		return env.Drink, nil
	}
	if len(env.Drinks) > 0 {
		return &env.Drinks[0], nil
	}
	return nil, fmt.Errorf("drinks api: create response has no drink")
}

// Update edits a drink. Requires patch:drinks.
func (c *Client) Update(ctx context.Context, id int, in Input) (*Drink, error) {
	env, err := c.do(ctx, http.MethodPatch, "/drinks/"+strconv.Itoa(id), in, true)
	if err != nil {
		return nil, err
	}
	if len(env.Drinks) > 0 {
		return &env.Drinks[0], nil
	}
	if env.Drink != nil {
		return env.Drink, nil
	}
	return nil, fmt.Errorf("drinks api: update response has no drink")
}

// Delete removes a drink and returns the deleted id. Requires delete:drinks.
func (c *Client) Delete(ctx context.Context, id int) (int, error) {
	env, err := c.do(ctx, http.MethodDelete, "/drinks/"+strconv.Itoa(id), nil, true)
	if err != nil {
		return 0, err
	}
	if env.Delete == nil {
		return 0, fmt.Errorf("drinks api: delete response has no id")
	}
	return *env.Delete, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, authenticated bool) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authenticated {
		if c.tokens == nil {
			return nil, auth.ErrNoToken
		}
		token, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("obtaining access token: %w", err)
		}
		token.SetAuthHeader(req)
	}

	log.WithFields(log.Fields{"method": method, "url": req.URL.String()}).Debug("drinks api request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 300 || (decodeErr == nil && !env.Success) {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Message}
		if decodeErr == nil && env.Error != 0 {
			apiErr.Status = env.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.ToLower(http.StatusText(apiErr.Status))
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	}
	return &env, nil
}
