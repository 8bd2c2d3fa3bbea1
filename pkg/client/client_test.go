package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/46labs/coffeeshop/pkg/config"
	"github.com/46labs/coffeeshop/pkg/server"
)

func recordUnderTest() config.Environment {
	return config.Environment{
		APIServerURL: "http://127.0.0.1:5000",
		Auth: config.Auth{
			Domain:      "udacity-cool-coffeeshop.us",
			Audience:    "drinks",
			ClientID:    "coffee_frontend",
			CallbackURL: "http://localhost:8100",
		},
	}
}

func setupTestServer(t *testing.T, apps []config.Application, apis []config.API) *httptest.Server {
	cfg := &config.Config{
		Environment: recordUnderTest(),
		Provider: config.Provider{
			Issuer:       "http://localhost:4646/",
			CORSOrigins:  []string{"*"},
			Applications: append(apps, config.Application{ClientID: "checker", ClientSecret: "checker_secret"}),
			APIs:         apis,
		},
	}

	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	srv.SetIssuer(ts.URL + "/")
	t.Cleanup(ts.Close)

	return ts
}

func newChecker(t *testing.T, ts *httptest.Server) *Client {
	c, err := New(Config{
		Domain:       ts.URL,
		ClientID:     "checker",
		ClientSecret: "checker_secret",
		Insecure:     true,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no domain", Config{ClientID: "a", ClientSecret: "b"}},
		{"no client id", Config{Domain: "example.test", ClientSecret: "b"}},
		{"no secret", Config{Domain: "example.test", ClientID: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestCheckRegistrationAgainstMock(t *testing.T) {
	env := recordUnderTest()

	t.Run("Registered", func(t *testing.T) {
		ts := setupTestServer(t,
			[]config.Application{{
				ClientID:          env.Auth.ClientID,
				Callbacks:         []string{env.Auth.CallbackURL, env.Auth.CallbackURL + config.UserPagePath},
				AllowedLogoutURLs: []string{env.Auth.CallbackURL},
			}},
			[]config.API{{
				ID:         "api_1",
				Identifier: env.Auth.Audience,
				Scopes:     []config.Scope{{Value: "get:drinks-detail"}, {Value: "post:drinks"}},
			}},
		)

		report, err := newChecker(t, ts).CheckRegistration(context.Background(), env)
		if err != nil {
			t.Fatalf("CheckRegistration failed: %v", err)
		}

		if !report.OK() {
			t.Fatalf("Expected registration to pass, problems: %v", report.Problems())
		}
		if !report.LogoutAllowed {
			t.Error("Expected logout url to be allowed")
		}
		if len(report.Scopes) != 2 {
			t.Errorf("Expected 2 scopes, got %v", report.Scopes)
		}
		if len(report.Problems()) != 0 {
			t.Errorf("Expected no problems, got %v", report.Problems())
		}
	})

	t.Run("CallbackNotRegistered", func(t *testing.T) {
		ts := setupTestServer(t,
			[]config.Application{{
				ClientID:  env.Auth.ClientID,
				Callbacks: []string{"http://localhost:4200"},
			}},
			[]config.API{{ID: "api_1", Identifier: env.Auth.Audience}},
		)

		report, err := newChecker(t, ts).CheckRegistration(context.Background(), env)
		if err != nil {
			t.Fatalf("CheckRegistration failed: %v", err)
		}

		if report.OK() {
			t.Fatal("Expected registration to fail")
		}
		if report.CallbackAllowed {
			t.Error("Callback should not be allowed")
		}
		if len(report.Problems()) != 2 {
			t.Errorf("Expected callback and logout problems, got %v", report.Problems())
		}
	})

	t.Run("TrailingSlashIsNotExact", func(t *testing.T) {
		ts := setupTestServer(t,
			[]config.Application{{
				ClientID:          env.Auth.ClientID,
				Callbacks:         []string{env.Auth.CallbackURL + "/"},
				AllowedLogoutURLs: []string{env.Auth.CallbackURL + "/"},
			}},
			[]config.API{{ID: "api_1", Identifier: env.Auth.Audience}},
		)

		report, err := newChecker(t, ts).CheckRegistration(context.Background(), env)
		if err != nil {
			t.Fatalf("CheckRegistration failed: %v", err)
		}

		if report.CallbackAllowed || report.LogoutAllowed {
			t.Errorf("Expected %s/ not to match %s, got %+v", env.Auth.CallbackURL, env.Auth.CallbackURL, report)
		}
		if report.OK() {
			t.Error("Expected registration to fail")
		}
	})

	t.Run("NothingRegistered", func(t *testing.T) {
		ts := setupTestServer(t, nil, nil)

		report, err := newChecker(t, ts).CheckRegistration(context.Background(), env)
		if err != nil {
			t.Fatalf("CheckRegistration failed: %v", err)
		}

		if report.ClientRegistered || report.AudienceRegistered {
			t.Errorf("Expected nothing registered, got %+v", report)
		}
		if len(report.Problems()) != 2 {
			t.Errorf("Expected client and audience problems, got %v", report.Problems())
		}
	})
}

func TestCheckRegistrationBadCredentials(t *testing.T) {
	ts := setupTestServer(t, nil, nil)

	c, err := New(Config{Domain: ts.URL, Token: "forged", Insecure: true})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := c.CheckRegistration(context.Background(), recordUnderTest()); err == nil {
		t.Error("Expected error for rejected token")
	}
}

func TestURLListedIsExact(t *testing.T) {
	list := []string{"http://localhost:8100", "http://localhost:8100/tabs/user-page"}

	tests := []struct {
		target string
		want   bool
	}{
		{"http://localhost:8100", true},
		{"http://localhost:8100/tabs/user-page", true},
		{"http://localhost:8100/", false},
		{"http://localhost:8100/tabs", false},
		{"https://localhost:8100", false},
	}

	for _, tt := range tests {
		if got := urlListed(&list, tt.target); got != tt.want {
			t.Errorf("urlListed(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}

	if urlListed(nil, "http://localhost:8100") {
		t.Error("Nil list allows nothing")
	}
}
