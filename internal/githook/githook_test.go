package githook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGitHub struct {
	mu       sync.Mutex
	existing []string
	created  []map[string]interface{}
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/TwiN/gatus/hooks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			hooks := make([]map[string]interface{}, 0, len(f.existing))
			for i, u := range f.existing {
				hooks = append(hooks, map[string]interface{}{
					"id":     i + 1,
					"config": map[string]interface{}{"url": u, "content_type": "json"},
				})
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(hooks)
		case http.MethodPost:
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.created = append(f.created, body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = fmt.Fprint(w, `{"id":99}`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func newTestRegistrar(t *testing.T, fake *fakeGitHub) *Registrar {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	baseURL, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL

	return NewRegistrar(client)
}

func TestEnsureWebhook_Creates(t *testing.T) {
	fake := &fakeGitHub{existing: []string{"https://other.example/hook"}}
	registrar := newTestRegistrar(t, fake)

	created, err := registrar.EnsureWebhook(context.Background(), "TwiN", "gatus", "https://deploy.example/webhook/gatus", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, fake.created, 1)
	hook := fake.created[0]
	assert.Equal(t, []interface{}{"push"}, hook["events"])
	assert.Equal(t, true, hook["active"])

	config, ok := hook["config"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://deploy.example/webhook/gatus", config["url"])
	assert.Equal(t, "json", config["content_type"])
	assert.Equal(t, "s3cret", config["secret"])
	assert.Equal(t, "0", config["insecure_ssl"])
}

func TestEnsureWebhook_Idempotent(t *testing.T) {
	fake := &fakeGitHub{existing: []string{"https://deploy.example/webhook/gatus"}}
	registrar := newTestRegistrar(t, fake)

	created, err := registrar.EnsureWebhook(context.Background(), "TwiN", "gatus", "https://deploy.example/webhook/gatus", "s3cret")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, fake.created)
}

func TestEnsureWebhook_APIError(t *testing.T) {
	registrar := newTestRegistrar(t, &fakeGitHub{})

	_, err := registrar.EnsureWebhook(context.Background(), "TwiN", "missing", "https://deploy.example/webhook/gatus", "s3cret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing webhooks")
}

func TestWebhookURL(t *testing.T) {
	assert.Equal(t, "https://deploy.example/webhook/gatus", WebhookURL("https://deploy.example", "gatus"))
	assert.Equal(t, "https://deploy.example/webhook/gatus", WebhookURL("https://deploy.example/", "gatus"))
}

func TestNewClient(t *testing.T) {
	assert.Nil(t, NewClient(context.Background(), ""))
	assert.NotNil(t, NewClient(context.Background(), "ghp_token"))
}
