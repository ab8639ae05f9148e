package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmfeed/ids"
	"mmfeed/models"
	"mmfeed/pmap"
)

func newTestStore(t *testing.T) *pmap.Log {
	t.Helper()
	store, err := pmap.Open(filepath.Join(t.TempDir(), "pmap.ndjson"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestApp(t *testing.T, store pmap.Store, maxEntries int) *fiber.App {
	t.Helper()
	return Server(&ServerConfig{
		Items:          NewItems(store, ids.NewGenerator(), maxEntries, NewBroadcaster()),
		WebhookToken:   "secret",
		ContactMessage: "Hi",
		Welcome:        "Welcome to the feed",
	})
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// failingStore refuses every write
type failingStore struct {
	pmap.Store
}

func (failingStore) PutWithLimit(key, value string, maxEntries int) ([]string, error) {
	return nil, errors.New("disk full")
}

func (failingStore) Remove(key string) (bool, error) {
	return false, errors.New("disk full")
}

func (failingStore) Len() int { return 0 }

func TestHealthz(t *testing.T) {
	app := newTestApp(t, newTestStore(t), 50)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, body)
}

func TestCreateAndRead(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store, 50)

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/api/pmap", `{"v":"hello"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.CreatedResponse
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	assert.True(t, created.Ok)
	assert.Len(t, created.Key, len(ids.Layout))

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/pmap", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var all models.ItemsResponse
	require.NoError(t, json.Unmarshal([]byte(body), &all))
	assert.Equal(t, map[string]string{created.Key: "hello"}, all.Items)

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/pmap/"+url.PathEscape(created.Key), nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var one models.ItemResponse
	require.NoError(t, json.Unmarshal([]byte(body), &one))
	assert.Equal(t, models.ItemResponse{Ok: true, Key: created.Key, Value: "hello"}, one)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
		wantValue  string
	}{
		{"invalid json", `{"v":`, http.StatusBadRequest, "invalid_json", ""},
		{"empty body", ``, http.StatusBadRequest, "invalid_json", ""},
		{"missing v", `{"x":"y"}`, http.StatusBadRequest, "missing_value", ""},
		{"null v", `{"v":null}`, http.StatusBadRequest, "missing_value", ""},
		{"not an object", `["v"]`, http.StatusBadRequest, "missing_value", ""},
		{"number v", `{"v":12}`, http.StatusCreated, "", "12"},
		{"object v", `{"v":{"text":"hi"}}`, http.StatusCreated, "", `{"text":"hi"}`},
		{"empty string v", `{"v":""}`, http.StatusCreated, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			app := newTestApp(t, store, 50)

			resp, body := do(t, app, jsonRequest(http.MethodPost, "/api/pmap", tt.body))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantError != "" {
				assert.JSONEq(t, `{"ok":false,"error":"`+tt.wantError+`"}`, body)
				assert.Equal(t, 0, store.Len())
				return
			}

			var created models.CreatedResponse
			require.NoError(t, json.Unmarshal([]byte(body), &created))
			value, ok := store.Get(created.Key)
			assert.True(t, ok)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestCreateKeepsLastEntries(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store, 2)

	var keys []string
	for _, v := range []string{"one", "two", "three"} {
		_, body := do(t, app, jsonRequest(http.MethodPost, "/api/pmap", `{"v":"`+v+`"}`))
		var created models.CreatedResponse
		require.NoError(t, json.Unmarshal([]byte(body), &created))
		keys = append(keys, created.Key)
	}

	assert.Equal(t, map[string]string{keys[1]: "two", keys[2]: "three"}, store.Snapshot())
}

func TestDeleteItem(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("2024-01-01T00:00:00.000Z", "bye"))
	app := newTestApp(t, store, 50)

	target := "/api/pmap/" + url.PathEscape("2024-01-01T00:00:00.000Z")

	resp, body := do(t, app, httptest.NewRequest(http.MethodDelete, target, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, body)
	assert.Equal(t, 0, store.Len())

	resp, body = do(t, app, httptest.NewRequest(http.MethodDelete, target, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"ok":false,"error":"not_found"}`, body)

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStoreFailures(t *testing.T) {
	app := newTestApp(t, failingStore{Store: newTestStore(t)}, 50)

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/api/pmap", `{"v":"x"}`))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"ok":false,"error":"io_error"}`, body)

	resp, body = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/pmap/k", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"ok":false,"error":"io_error"}`, body)

	// The webhook still answers 200
	resp, _ = do(t, app, formRequest("/wabox/hook", url.Values{
		"token":               {"secret"},
		"event":               {"message"},
		"message[dir]":        {"i"},
		"message[type]":       {"chat"},
		"message[body][text]": {"hello"},
	}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	app := newTestApp(t, newTestStore(t), 50)

	req := httptest.NewRequest(http.MethodGet, "/api/pmap", nil)
	req.Header.Set("Origin", "https://example.com")
	resp, _ := do(t, app, req)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/pmap", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	resp, _ = do(t, app, req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "GET,POST,DELETE,OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
}

func TestWebhook(t *testing.T) {
	message := func(extra url.Values) url.Values {
		form := url.Values{
			"token":               {"secret"},
			"event":               {"message"},
			"message[dir]":        {"i"},
			"message[type]":       {"chat"},
			"message[body][text]": {"Selling miles"},
		}
		for k, v := range extra {
			form[k] = v
		}
		return form
	}

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantStored string
	}{
		{"missing token", url.Values{"event": {"message"}}, http.StatusForbidden, ""},
		{"wrong token", url.Values{"token": {"nope"}, "event": {"message"}}, http.StatusForbidden, ""},
		{"missing event", url.Values{"token": {"secret"}}, http.StatusBadRequest, ""},
		{"incoming chat", message(nil), http.StatusOK, "Selling miles"},
		{
			name:       "incoming chat with contact",
			form:       message(url.Values{"contact[name]": {"Maria Silva"}, "contact[uid]": {"5561999"}}),
			wantStatus: http.StatusOK,
			wantStored: `{"text":"Selling miles","name":"Maria Silva","wa":"5561999"}`,
		},
		{"uppercase direction", message(url.Values{"message[dir]": {"I"}}), http.StatusOK, "Selling miles"},
		{"outgoing chat", message(url.Values{"message[dir]": {"o"}}), http.StatusOK, ""},
		{"image message", message(url.Values{"message[type]": {"image"}}), http.StatusOK, ""},
		{"missing text", message(url.Values{"message[body][text]": nil}), http.StatusOK, ""},
		{"ack", url.Values{"token": {"secret"}, "event": {"ack"}, "ack": {"3"}}, http.StatusOK, ""},
		{"other event", url.Values{"token": {"secret"}, "event": {"status"}}, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			app := newTestApp(t, store, 50)

			resp, _ := do(t, app, formRequest("/wabox/hook", tt.form))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			snapshot := store.Snapshot()
			if tt.wantStored == "" {
				assert.Empty(t, snapshot)
				return
			}
			require.Len(t, snapshot, 1)
			for _, v := range snapshot {
				assert.Equal(t, tt.wantStored, v)
			}
		})
	}
}

func TestWebhookStoresEmptyText(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store, 50)

	form := url.Values{
		"token":               {"secret"},
		"event":               {"message"},
		"message[dir]":        {"i"},
		"message[type]":       {"chat"},
		"message[body][text]": {""},
	}
	resp, _ := do(t, app, formRequest("/wabox/hook", form))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	snapshot := store.Snapshot()
	require.Len(t, snapshot, 1)
	for _, v := range snapshot {
		assert.Equal(t, "", v)
	}
}

func TestWebhookWithoutConfiguredToken(t *testing.T) {
	app := Server(&ServerConfig{
		Items: NewItems(newTestStore(t), nil, 0, nil),
	})

	resp, body := do(t, app, formRequest("/wabox/hook", url.Values{"token": {""}, "event": {"message"}}))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"ok":false,"error":"forbidden"}`, body)
}

func TestPage(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("2024-01-01T00:00:00.000Z", "<script>alert(1)</script>"))
	require.NoError(t, store.Put("2024-01-01T00:00:05.000Z", `{"text":"see https://example.com","name":"Ana Lima","wa":"5561"}`))
	app := newTestApp(t, store, 50)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, `>https://example.com</a>`)
	assert.Contains(t, body, "Ana · ")
	assert.Contains(t, body, "https://wa.me/5561?text=Hi")
	assert.Contains(t, body, "Welcome to the feed")
	assert.Contains(t, body, `data-theme="light"`)

	// Newest first
	assert.Less(t, strings.Index(body, "Ana"), strings.Index(body, "&lt;script&gt;"))
}

func TestPageTheme(t *testing.T) {
	app := newTestApp(t, newTestStore(t), 50)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/?theme=dark", nil))
	assert.Contains(t, body, `data-theme="dark"`)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "mm_theme=dark")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "mm_theme", Value: "dark"})
	_, body = do(t, app, req)
	assert.Contains(t, body, `data-theme="dark"`)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Sec-CH-Prefers-Color-Scheme", "dark")
	_, body = do(t, app, req)
	assert.Contains(t, body, `data-theme="dark"`)
}

func TestPageActions(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store, 50)

	resp, _ := do(t, app, formRequest("/feed/post", url.Values{"text": {"from the page"}}))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, 1, store.Len())

	var key string
	for k := range store.Snapshot() {
		key = k
	}

	resp, body := do(t, app, formRequest("/feed/delete", url.Values{"id": {"missing"}}))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Failed to delete the item")
	assert.Equal(t, 1, store.Len())

	resp, _ = do(t, app, formRequest("/feed/delete", url.Values{"id": {key}}))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 0, store.Len())
}

func TestStaticAndMetrics(t *testing.T) {
	app := newTestApp(t, newTestStore(t), 50)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "data-theme")

	do(t, app, jsonRequest(http.MethodPost, "/api/pmap", `{"v":"count me"}`))

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "mmfeed_items_created_total")
}
