package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/termdoc/internal/config"
	"github.com/FocuswithJustin/termdoc/internal/store"
)

const testAPIKey = "0123456789abcdef-test"

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// newTestServer starts a server over a fresh store. edit adjusts the
// default config before the server is built.
func newTestServer(t *testing.T, edit func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	if edit != nil {
		edit(&cfg)
	}
	s := New(cfg, openStore(t))
	s.Version = "test"
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

// call performs a request and decodes the envelope. data, if non-nil,
// receives the Data field.
func call(t *testing.T, ts *httptest.Server, method, path string, body any, data any) (*http.Response, APIResponse) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
	return resp, env.APIResponse
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var health HealthInfo
	resp, env := call(t, ts, http.MethodGet, "/health", nil, &health)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("status %d success %v", resp.StatusCode, env.Success)
	}
	if health.Status != "healthy" || health.Version != "test" {
		t.Errorf("unexpected health: %+v", health)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestRootAndUnknownPaths(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var root map[string]any
	resp, _ := call(t, ts, http.MethodGet, "/", nil, &root)
	if resp.StatusCode != http.StatusOK || root["name"] != "termdoc API" {
		t.Errorf("root: status %d data %v", resp.StatusCode, root)
	}

	resp, env := call(t, ts, http.MethodGet, "/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown path: status %d error %+v", resp.StatusCode, env.Error)
	}
}

func TestConvertParse(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		name      string
		markup    string
		canonical string
		loss      string
		warnings  bool
		empty     bool
	}{
		{"canonical", "<div>Hi</div>", "<div>Hi</div>", "L0", false, false},
		{"layout only", "<p>Hi</p>", "<div>Hi</div>", "L1", false, false},
		{"dropped attribute", `<div class="x">Hi</div>`, "<div>Hi</div>", "L2", true, false},
		{"empty input", "", "", "L0", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res struct {
				Tree      json.RawMessage `json:"tree"`
				Canonical string          `json:"canonical"`
				LossClass string          `json:"loss_class"`
				Warnings  []string        `json:"warnings"`
				Empty     bool            `json:"empty"`
			}
			resp, _ := call(t, ts, http.MethodPost, "/convert/parse", ParseRequest{Markup: tt.markup}, &res)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status %d", resp.StatusCode)
			}
			if res.Canonical != tt.canonical || res.LossClass != tt.loss {
				t.Errorf("canonical %q loss %s, want %q %s", res.Canonical, res.LossClass, tt.canonical, tt.loss)
			}
			if (len(res.Warnings) > 0) != tt.warnings {
				t.Errorf("warnings = %v", res.Warnings)
			}
			if res.Empty != tt.empty {
				t.Errorf("empty = %v, want %v", res.Empty, tt.empty)
			}
			if !strings.Contains(string(res.Tree), `"type":"root"`) {
				t.Errorf("tree = %s", res.Tree)
			}
		})
	}
}

func TestConvertRender(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tree := json.RawMessage(`{"type":"root","children":[
		{"type":"inline","content":[{"type":"text","value":"a "},{"type":"tagged-term","id":"k","value":"b"}]},
		{"type":"ordered-list","items":[{"type":"list-item","content":{"type":"inline","content":[{"type":"text","value":"one"}]}}]}]}`)

	var res RenderResult
	resp, _ := call(t, ts, http.MethodPost, "/convert/render", map[string]any{"tree": tree}, &res)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	want := `<div>a <span data-content-type="tagged-term" data-content-id="k">b</span></div><div><ol><li>one</li></ol></div>`
	if res.Markup != want {
		t.Errorf("markup = %q\nwant     %q", res.Markup, want)
	}

	bad := []any{
		map[string]any{},
		map[string]any{"tree": json.RawMessage(`{"type":"root","children":[{"type":"table"}]}`)},
		map[string]any{"markup": "<div>x</div>"},
	}
	for _, body := range bad {
		resp, env := call(t, ts, http.MethodPost, "/convert/render", body, nil)
		if resp.StatusCode != http.StatusBadRequest || env.Success {
			t.Errorf("body %v: status %d", body, resp.StatusCode)
		}
	}
}

func TestConvertRenderLegalTrees(t *testing.T) {
	_, ts := newTestServer(t, nil)

	deep := "<div><ul><li>a<ul><li>b<ul><li>c<ul><li>d</li></ul></li></ul></li></ul></li></ul></div>"
	var parsed struct {
		Tree json.RawMessage `json:"tree"`
	}
	if resp, _ := call(t, ts, http.MethodPost, "/convert/parse", ParseRequest{Markup: deep}, &parsed); resp.StatusCode != http.StatusOK {
		t.Fatalf("parse status %d", resp.StatusCode)
	}

	tests := []struct {
		name string
		tree json.RawMessage
		want string
	}{
		{"nesting past the indent cap", parsed.Tree, deep},
		{
			"empty list is dropped",
			json.RawMessage(`{"type":"root","children":[{"type":"inline","content":[{"type":"text","value":"x"}]},{"type":"unordered-list","items":[]}]}`),
			"<div>x</div>",
		},
		{
			"adjacent text runs are merged",
			json.RawMessage(`{"type":"root","children":[{"type":"inline","content":[{"type":"text","value":"a"},{"type":"text","value":"b"}]}]}`),
			"<div>ab</div>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res RenderResult
			resp, env := call(t, ts, http.MethodPost, "/convert/render", map[string]any{"tree": tt.tree}, &res)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status %d error %+v", resp.StatusCode, env.Error)
			}
			if res.Markup != tt.want {
				t.Errorf("markup = %q, want %q", res.Markup, tt.want)
			}
		})
	}

	orphan := json.RawMessage(`{"type":"root","children":[{"type":"inline","content":[{"type":"tagged-term","value":"x"}]}]}`)
	resp, env := call(t, ts, http.MethodPost, "/convert/render", map[string]any{"tree": orphan}, nil)
	if resp.StatusCode != http.StatusBadRequest || env.Error == nil || env.Error.Code != "INVALID_TREE" {
		t.Errorf("term without id: status %d error %+v", resp.StatusCode, env.Error)
	}
}

func TestRejectsNonJSONBody(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := ts.Client().Post(ts.URL+"/convert/parse", "text/html", strings.NewReader("<div>x</div>"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status %d, want 415", resp.StatusCode)
	}
}

func TestDocumentsLifecycle(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var doc store.Document
	resp, _ := call(t, ts, http.MethodPost, "/documents", CreateRequest{Title: " Notes\x00 ", Markup: "<p>one</p>"}, &doc)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	if doc.Title != "Notes" || doc.Markup != "<div>one</div>" || doc.Revision != 1 {
		t.Fatalf("created %+v", doc)
	}

	var got store.Document
	if resp, _ := call(t, ts, http.MethodGet, "/documents/"+doc.ID, nil, &got); resp.StatusCode != http.StatusOK || got.ID != doc.ID {
		t.Errorf("get: status %d doc %+v", resp.StatusCode, got)
	}

	var upd UpdateResult
	call(t, ts, http.MethodPut, "/documents/"+doc.ID, UpdateRequest{Markup: "<div>one</div>"}, &upd)
	if upd.Changed || upd.Document.Revision != 1 {
		t.Errorf("no-op update: %+v", upd)
	}
	call(t, ts, http.MethodPut, "/documents/"+doc.ID, UpdateRequest{Markup: "<div>two</div>"}, &upd)
	if !upd.Changed || upd.Document.Revision != 2 {
		t.Errorf("update: %+v", upd)
	}

	var list []store.Document
	_, env := call(t, ts, http.MethodGet, "/documents", nil, &list)
	if len(list) != 1 || env.Meta == nil || env.Meta.Total != 1 {
		t.Errorf("list = %+v meta %+v", list, env.Meta)
	}

	var history []store.Revision
	call(t, ts, http.MethodGet, "/documents/"+doc.ID+"/history", nil, &history)
	if len(history) != 2 || history[0].Markup != "<div>one</div>" || history[1].Markup != "<div>two</div>" {
		t.Errorf("history = %+v", history)
	}

	if resp, _ := call(t, ts, http.MethodDelete, "/documents/"+doc.ID, nil, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("delete status %d", resp.StatusCode)
	}
	resp, env = call(t, ts, http.MethodGet, "/documents/"+doc.ID, nil, nil)
	if resp.StatusCode != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Errorf("after delete: status %d error %+v", resp.StatusCode, env.Error)
	}
}

func TestDocumentErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		method, path string
		body         any
		status       int
	}{
		{http.MethodGet, "/documents/not-a-uuid", nil, http.StatusNotFound},
		{http.MethodPut, "/documents/3f2b8c1e-9d4a-4b6f-8e2a-1c5d7f9a0b3e", UpdateRequest{Markup: "x"}, http.StatusNotFound},
		{http.MethodDelete, "/documents/3f2b8c1e-9d4a-4b6f-8e2a-1c5d7f9a0b3e", nil, http.StatusNotFound},
		{http.MethodPost, "/documents", CreateRequest{Markup: "<div>x</div>"}, http.StatusBadRequest},
		{http.MethodPost, "/documents", map[string]any{"title": "t", "extra": 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, env := call(t, ts, tt.method, tt.path, tt.body, nil)
		if resp.StatusCode != tt.status || env.Success {
			t.Errorf("%s %s: status %d, want %d", tt.method, tt.path, resp.StatusCode, tt.status)
		}
	}
}

func TestAuth(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) {
		c.Auth = config.AuthConfig{Enabled: true, APIKey: testAPIKey}
	})

	if resp, _ := call(t, ts, http.MethodGet, "/health", nil, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health should be public, got %d", resp.StatusCode)
	}

	for _, key := range []string{"", "wrong-key-wrong-key"} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/documents", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("key %q: status %d, want 401", key, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/documents", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid key: status %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateConfig{RequestsPerMinute: 1, Burst: 2}
	})

	codes := make([]int, 3)
	for i := range codes {
		resp, _ := call(t, ts, http.MethodGet, "/health", nil, nil)
		codes[i] = resp.StatusCode
		if i == 2 && resp.Header.Get("Retry-After") == "" {
			t.Error("429 without Retry-After")
		}
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)
	call(t, ts, http.MethodGet, "/health", nil, nil)
	for i := 0; i < 2; i++ {
		call(t, ts, http.MethodPost, "/convert/parse", ParseRequest{Markup: "<p>cached</p>"}, nil)
	}

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		"termdoc_http_requests_total{",
		`route="GET /health"`,
		`status="200"`,
		"termdoc_http_request_duration_seconds_bucket",
		"termdoc_sessions_active 0",
		"termdoc_parse_cache_hits_total 1",
		"termdoc_parse_cache_misses_total 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCORS(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) {
		c.AllowedOrigins = []string{"http://editor.local"}
	})
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/documents", nil)
	req.Header.Set("Origin", "http://editor.local")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://editor.local" {
		t.Errorf("Allow-Origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	s := New(cfg, openStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("ListenAndServe after cancel = %v", err)
	}
}
