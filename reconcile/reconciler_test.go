package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/flint-bot/flint/bot"
	"github.com/flint-bot/flint/platform"
	"github.com/flint-bot/flint/storage/memstore"
)

// fakePlatform is a mutable remote state the reconciler converges against.
type fakePlatform struct {
	mu       sync.Mutex
	rooms    []platform.Room
	webhooks []platform.Webhook
	nextID   int
	deletes  int
	self     platform.Person
}

func (f *fakePlatform) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}

func (f *fakePlatform) addRoom(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, platform.Room{ID: id, Type: platform.RoomTypeGroup})
}

func (f *fakePlatform) removeRoom(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rooms {
		if r.ID == id {
			f.rooms = append(f.rooms[:i], f.rooms[i+1:]...)
			return
		}
	}
}

func (f *fakePlatform) addWebhook(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.webhooks = append(f.webhooks, platform.Webhook{ID: fmt.Sprintf("wh-%d", f.nextID), Name: name})
}

func (f *fakePlatform) webhookNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.webhooks))
	for _, wh := range f.webhooks {
		out = append(out, wh.Name)
	}
	return out
}

func (f *fakePlatform) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rooms", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"items": f.rooms})
	})
	mux.HandleFunc("GET /rooms/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, room := range f.rooms {
			if room.ID == r.PathValue("id") {
				json.NewEncoder(w).Encode(room)
				return
			}
		}
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("GET /memberships", func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("roomId")
		json.NewEncoder(w).Encode(map[string]any{"items": []platform.Membership{
			{ID: "mem-" + roomID, RoomID: roomID, PersonID: f.self.ID},
		}})
	})
	mux.HandleFunc("GET /webhooks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"items": f.webhooks})
	})
	mux.HandleFunc("POST /webhooks", func(w http.ResponseWriter, r *http.Request) {
		var spec platform.WebhookSpec
		json.NewDecoder(r.Body).Decode(&spec)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		wh := platform.Webhook{
			ID:        fmt.Sprintf("wh-%d", f.nextID),
			Name:      spec.Name,
			TargetURL: spec.TargetURL,
			Resource:  spec.Resource,
			Event:     spec.Event,
			Filter:    spec.Filter,
		}
		f.webhooks = append(f.webhooks, wh)
		json.NewEncoder(w).Encode(wh)
	})
	mux.HandleFunc("DELETE /webhooks/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, wh := range f.webhooks {
			if wh.ID == id {
				f.webhooks = append(f.webhooks[:i], f.webhooks[i+1:]...)
				f.deletes++
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		http.Error(w, "not found", http.StatusNotFound)
	})
	return mux
}

func newTestReconciler(t *testing.T, f *fakePlatform) (*Reconciler, *bot.Manager) {
	t.Helper()
	f.self = platform.Person{ID: "me-1", Emails: []string{"bot@example.com"}}

	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	client := platform.New(srv.Client(), srv.URL, "tok")

	manager, err := bot.NewManager(bot.ManagerOptions{
		Client: client,
		Self:   f.self,
		Store:  memstore.New(),
		Logger: slog.Default(),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	rec, err := New(Options{
		Client:    client,
		Manager:   manager,
		Owner:     "flint",
		TargetURL: "https://bots.example.com/hook",
		Logger:    slog.Default(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rec, manager
}

func TestTickConvergesFreshState(t *testing.T) {
	f := &fakePlatform{}
	f.addRoom("r-1")
	f.addRoom("r-2")
	rec, manager := newTestReconciler(t, f)

	rec.Tick(context.Background())

	if manager.Len() != 2 {
		t.Fatalf("Len = %d after first tick, want 2", manager.Len())
	}
	names := f.webhookNames()
	want := map[string]bool{"flint:room:r-1": true, "flint:room:r-2": true}
	for _, n := range names {
		delete(want, n)
	}
	if len(want) != 0 {
		t.Fatalf("missing subscriptions %v in %v", want, names)
	}

	// A second tick over converged state changes nothing.
	before := len(f.webhookNames())
	rec.Tick(context.Background())
	if manager.Len() != 2 || len(f.webhookNames()) != before {
		t.Fatal("second tick was not idempotent")
	}
}

func TestDedupKeepsFirstInListOrder(t *testing.T) {
	f := &fakePlatform{}
	f.addRoom("r-1")
	f.addWebhook("flint:room:r-1")
	f.addWebhook("flint:room:r-1")
	f.addWebhook("flint:room:r-1")
	rec, _ := newTestReconciler(t, f)

	rec.Tick(context.Background())

	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	keptID := ""
	for _, wh := range f.webhooks {
		if wh.Name == "flint:room:r-1" {
			count++
			keptID = wh.ID
		}
	}
	if count != 1 {
		t.Fatalf("%d subscriptions survive dedup, want 1", count)
	}
	if keptID != "wh-1" {
		t.Fatalf("kept %s, want the first-listed wh-1", keptID)
	}
}

func TestDedupIsIdempotent(t *testing.T) {
	f := &fakePlatform{}
	f.addRoom("r-1")
	f.addWebhook("flint:room:r-1")
	f.addWebhook("flint:room:r-1")
	rec, _ := newTestReconciler(t, f)

	rec.Tick(context.Background())
	if f.deleteCount() != 1 {
		t.Fatalf("deleteCount = %d after first tick, want 1", f.deleteCount())
	}

	// Deduplicating an already-deduplicated set changes nothing.
	before := f.webhookNames()
	rec.Tick(context.Background())
	if f.deleteCount() != 1 {
		t.Fatalf("deleteCount = %d after second tick, want 1", f.deleteCount())
	}
	after := f.webhookNames()
	if len(after) != len(before) {
		t.Fatalf("webhooks changed across ticks: %v -> %v", before, after)
	}
}

func TestZombieReaping(t *testing.T) {
	f := &fakePlatform{}
	f.addRoom("r-1")
	f.addRoom("r-2")
	rec, manager := newTestReconciler(t, f)

	rec.Tick(context.Background())
	if manager.Len() != 2 {
		t.Fatalf("Len = %d, want 2", manager.Len())
	}

	f.removeRoom("r-2")
	rec.Tick(context.Background())

	if manager.Len() != 1 {
		t.Fatalf("Len = %d after zombie pass, want 1", manager.Len())
	}
	if _, ok := manager.Get("r-1"); !ok {
		t.Fatal("surviving room lost its bot")
	}
}

func TestForeignWebhooksAreLeftAlone(t *testing.T) {
	f := &fakePlatform{}
	f.addRoom("r-1")
	f.addWebhook("other-deployment:room:r-1")
	rec, _ := newTestReconciler(t, f)

	rec.Tick(context.Background())

	found := false
	for _, n := range f.webhookNames() {
		if n == "other-deployment:room:r-1" {
			found = true
		}
	}
	if !found {
		t.Fatal("foreign subscription was deleted")
	}
}

func TestTickSurvivesListFailure(t *testing.T) {
	// A platform that fails every call must not panic the tick or spawn
	// anything.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := platform.New(srv.Client(), srv.URL, "tok")

	manager, err := bot.NewManager(bot.ManagerOptions{
		Client: client,
		Self:   platform.Person{ID: "me-1"},
		Store:  memstore.New(),
		Logger: slog.Default(),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	rec, err := New(Options{
		Client:    client,
		Manager:   manager,
		Owner:     "flint",
		TargetURL: "https://bots.example.com/hook",
		Logger:    slog.Default(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec.Tick(context.Background())
	if manager.Len() != 0 {
		t.Fatalf("Len = %d after failed tick, want 0", manager.Len())
	}
}

func TestEnsureRoomSubscriptionReusesExisting(t *testing.T) {
	f := &fakePlatform{}
	f.addRoom("r-1")
	f.addWebhook("flint:room:r-1")
	rec, _ := newTestReconciler(t, f)

	name, id, err := rec.EnsureRoomSubscription(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("EnsureRoomSubscription: %v", err)
	}
	if name != "flint:room:r-1" || id != "wh-1" {
		t.Fatalf("got %q %q, want the existing registration", name, id)
	}
	if len(f.webhookNames()) != 1 {
		t.Fatal("a duplicate subscription was created")
	}
}
