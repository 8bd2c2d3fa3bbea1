package drinks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/46labs/coffeeshop/pkg/auth"
	"github.com/46labs/coffeeshop/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers like the drinks API: success envelopes, and
// {"success": false, "error": code, "message": ...} on failure.
type fakeBackend struct {
	mu     sync.Mutex
	drinks map[int]Drink
	nextID int
	token  string
	paths  []string
}

func newFakeBackend(token string) *fakeBackend {
	return &fakeBackend{
		drinks: map[int]Drink{
			1: {ID: 1, Title: "water", Recipe: []Ingredient{{Name: "water", Color: "blue", Parts: 1}}},
		},
		nextID: 2,
		token:  token,
	}
}

func writeEnvelope(w http.ResponseWriter, status int, v map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, map[string]interface{}{"success": false, "error": status, "message": message})
}

func short(d Drink) Drink {
	out := Drink{ID: d.ID, Title: d.Title}
	for _, in := range d.Recipe {
		out.Recipe = append(out.Recipe, Ingredient{Color: in.Color, Parts: in.Parts})
	}
	return out
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+b.token
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /drinks", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.paths = append(b.paths, r.URL.Path)
		list := []Drink{}
		for _, d := range b.drinks {
			list = append(list, short(d))
		}
		writeEnvelope(w, 200, map[string]interface{}{"success": true, "drinks": list})
	})

	mux.HandleFunc("GET /drinks-detail", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			fail(w, 401, "unauthorized")
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		list := []Drink{}
		for _, d := range b.drinks {
			list = append(list, d)
		}
		writeEnvelope(w, 200, map[string]interface{}{"success": true, "drinks": list})
	})

	mux.HandleFunc("POST /drinks", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			fail(w, 401, "unauthorized")
			return
		}
		var in Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Title == nil {
			fail(w, 400, "bad request")
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		d := Drink{ID: b.nextID, Title: *in.Title, Recipe: in.Recipe}
		b.drinks[d.ID] = d
		b.nextID++
		writeEnvelope(w, 200, map[string]interface{}{"success": true, "drink": d})
	})

	mux.HandleFunc("PATCH /drinks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			fail(w, 401, "unauthorized")
			return
		}
		id, _ := strconv.Atoi(r.PathValue("id"))
		b.mu.Lock()
		defer b.mu.Unlock()
		d, ok := b.drinks[id]
		if !ok {
			fail(w, 404, "resource not found")
			return
		}
		var in Input
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Title != nil {
			d.Title = *in.Title
		}
		if in.Recipe != nil {
			d.Recipe = in.Recipe
		}
		b.drinks[id] = d
		writeEnvelope(w, 200, map[string]interface{}{"success": true, "drinks": []Drink{d}})
	})

	mux.HandleFunc("DELETE /drinks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			fail(w, 401, "unauthorized")
			return
		}
		id, _ := strconv.Atoi(r.PathValue("id"))
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.drinks[id]; !ok {
			fail(w, 404, "resource not found")
			return
		}
		delete(b.drinks, id)
		writeEnvelope(w, 200, map[string]interface{}{"success": true, "delete": id})
	})

	return mux
}

func setup(t *testing.T, opts ...Option) (*Client, *fakeBackend) {
	backend := newFakeBackend("good-token")
	ts := httptest.NewServer(backend.handler())
	t.Cleanup(ts.Close)

	env := config.Development()
	env.APIServerURL = ts.URL

	c, err := New(env, opts...)
	require.NoError(t, err)
	return c, backend
}

func TestURLPrefixesAPIServer(t *testing.T) {
	c, err := New(config.Environment{APIServerURL: "http://127.0.0.1:5000"})
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:5000/drinks", c.URL("/drinks"))
	assert.Equal(t, "http://127.0.0.1:5000/drinks", c.URL("drinks"))
	assert.Equal(t, "http://127.0.0.1:5000/drinks/3", c.URL("/drinks/3"))

	c, err = New(config.Environment{APIServerURL: "https://api.example.test/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test/v1/drinks", c.URL("/drinks"))
}

func TestNewRejectsRelativeURL(t *testing.T) {
	for _, raw := range []string{"", "/api", "127.0.0.1:5000"} {
		_, err := New(config.Environment{APIServerURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestListIsPublic(t *testing.T) {
	c, backend := setup(t)

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "water", list[0].Title)
	assert.Empty(t, list[0].Recipe[0].Name, "short form hides ingredient names")
	assert.Equal(t, []string{"/drinks"}, backend.paths)
}

func TestPermissionedCallsNeedToken(t *testing.T) {
	c, _ := setup(t)

	_, err := c.Detail(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoToken)

	_, err = c.Delete(context.Background(), 1)
	assert.ErrorIs(t, err, auth.ErrNoToken)
}

func TestRejectedToken(t *testing.T) {
	c, _ := setup(t, WithAccessToken("bad-token"))

	_, err := c.Detail(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Message)
}

func TestDrinkLifecycle(t *testing.T) {
	c, _ := setup(t, WithAccessToken("good-token"))
	ctx := context.Background()

	created, err := c.Create(ctx, NewInput("latte",
		Ingredient{Name: "espresso", Color: "brown", Parts: 1},
		Ingredient{Name: "milk", Color: "white", Parts: 3},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, created.ID)
	assert.Equal(t, "milk", created.Recipe[1].Name)

	detail, err := c.Detail(ctx)
	require.NoError(t, err)
	assert.Len(t, detail, 2)

	title := "flat white"
	updated, err := c.Update(ctx, created.ID, Input{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "flat white", updated.Title)
	assert.Len(t, updated.Recipe, 2, "recipe left unchanged")

	deleted, err := c.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted)

	_, err = c.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateWithoutTitleIsBadRequest(t *testing.T) {
	c, _ := setup(t, WithAccessToken("good-token"))

	_, err := c.Create(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestNonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html>boom</html>", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c, err := New(config.Environment{APIServerURL: ts.URL})
	require.NoError(t, err)

	_, err = c.List(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.Status)
	assert.True(t, strings.Contains(apiErr.Message, "internal server error"))
}
