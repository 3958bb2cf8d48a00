package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flint-bot/flint/platform"
)

func newTestRuntime(t *testing.T, opts Options) *Runtime {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /people/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(platform.Person{ID: "me-1", Emails: []string{"bot@example.com"}, DisplayName: "Flint"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	opts.Token = "tok"
	opts.BaseURL = srv.URL
	opts.HTTPClient = srv.Client()
	if opts.TargetURL == "" && opts.Transport != TransportSocket {
		opts.TargetURL = "https://bots.example.com/hook"
	}
	rt, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rt
}

func TestNewResolvesIdentity(t *testing.T) {
	rt := newTestRuntime(t, Options{Name: "flint"})
	if rt.Self().ID != "me-1" || rt.Self().Email() != "bot@example.com" {
		t.Fatalf("Self = %+v", rt.Self())
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error with no token")
	}
	if _, err := New(context.Background(), Options{Token: "tok", Transport: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown transport")
	}
	if _, err := New(context.Background(), Options{Token: "tok", Transport: TransportWebhook}); err == nil {
		t.Fatal("expected error for webhook transport without target url")
	}
}

func TestHealthEndpoint(t *testing.T) {
	rt := newTestRuntime(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	rt.HTTPHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Bots   int    `json:"bots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid health body %q: %v", rec.Body.String(), err)
	}
	if body.Status != "ok" || body.Bots != 0 {
		t.Fatalf("health = %+v", body)
	}
}

func TestLoadPhrasebook(t *testing.T) {
	rt := newTestRuntime(t, Options{})

	path := filepath.Join(t.TempDir(), "phrases.yaml")
	yaml := strings.Join([]string{
		`- phrase: ping`,
		`  reply: pong`,
		`- phrase: hello`,
		`  reply: hi there`,
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	n, err := rt.LoadPhrasebook(path)
	if err != nil {
		t.Fatalf("LoadPhrasebook: %v", err)
	}
	if n != 2 {
		t.Fatalf("registered = %d, want 2", n)
	}
	if rt.Lexicon().Len() != 2 {
		t.Fatalf("Lexicon.Len = %d, want 2", rt.Lexicon().Len())
	}
}

func TestLoadPhrasebookRejectsIncompleteEntries(t *testing.T) {
	rt := newTestRuntime(t, Options{})
	path := filepath.Join(t.TempDir(), "phrases.yaml")
	if err := os.WriteFile(path, []byte("- phrase: lonely\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := rt.LoadPhrasebook(path); err == nil {
		t.Fatal("expected error for an entry without a reply")
	}
}
