package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flint-bot/flint/platform"
	"github.com/flint-bot/flint/storage"
)

// EnsureSubscription resolves or creates the room's remote subscription and
// returns its name and webhook id. Wired in by the runtime so the manager
// stays ignorant of webhook naming.
type EnsureSubscription func(ctx context.Context, roomID string) (name, webhookID string, err error)

type ManagerOptions struct {
	Client             *platform.Client
	Self               platform.Person
	Store              storage.Store
	Logger             *slog.Logger
	Config             Config
	EnsureSubscription EnsureSubscription
	OnSpawn            func(*Bot)
	OnDespawn          func(*Bot)
}

// Manager constructs, holds, and destroys per-room bot instances. It is the
// single owner of the live instance set; the reconciliation loop and the
// dispatcher both converge through it.
type Manager struct {
	client    *platform.Client
	self      platform.Person
	store     storage.Store
	logger    *slog.Logger
	cfg       Config
	ensureSub EnsureSubscription
	onSpawn   func(*Bot)
	onDespawn func(*Bot)

	mu   sync.RWMutex
	bots map[string]*Bot
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("manager requires a platform client")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("manager requires a storage backend")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:    opts.Client,
		self:      opts.Self,
		store:     opts.Store,
		logger:    logger,
		cfg:       opts.Config.normalize(),
		ensureSub: opts.EnsureSubscription,
		onSpawn:   opts.OnSpawn,
		onDespawn: opts.OnDespawn,
	}, nil
}

// Spawn builds a bot instance for a room: fetches the room, the runtime's own
// membership in it, and resolves the room's subscription. Any fetch failure
// discards the partially built instance; nothing partially live ever enters
// the live set. Spawning an already-live room returns the existing instance,
// which makes overlapping reconciliation ticks harmless.
func (m *Manager) Spawn(ctx context.Context, roomID string) (*Bot, error) {
	if b, ok := m.Get(roomID); ok {
		return b, nil
	}

	room, err := m.client.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("spawn fetch room: %w", err)
	}
	membership, err := m.client.MyMembership(ctx, roomID, m.self.ID)
	if err != nil {
		return nil, fmt.Errorf("spawn fetch membership: %w", err)
	}
	subName, subID := "", ""
	if m.ensureSub != nil {
		subName, subID, err = m.ensureSub(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("spawn ensure subscription: %w", err)
		}
	}

	b := newBot(m.client, m.self, m.store, m.logger, m.cfg, room, membership)
	if subName != "" {
		b.AttachSubscription(subName, subID)
	}

	m.mu.Lock()
	if m.bots == nil {
		m.bots = make(map[string]*Bot)
	}
	if existing, ok := m.bots[roomID]; ok {
		// Lost the race against a concurrent spawn for the same room.
		m.mu.Unlock()
		return existing, nil
	}
	m.bots[roomID] = b
	m.mu.Unlock()

	b.sched.Start()
	m.logger.Info("bot_spawned", "room_id", roomID, "room_type", room.Type, "room_title", room.Title)
	if m.onSpawn != nil {
		m.onSpawn(b)
	}
	return b, nil
}

// Destroy tears down the instance for a room. Idempotent: destroying an
// unknown or already-destroyed room is a no-op.
func (m *Manager) Destroy(ctx context.Context, roomID string) {
	m.mu.Lock()
	b, ok := m.bots[roomID]
	if ok {
		delete(m.bots, roomID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	b.stop(ctx)
	m.logger.Info("bot_despawned", "room_id", roomID)
	if m.onDespawn != nil {
		m.onDespawn(b)
	}
}

func (m *Manager) DestroyAll(ctx context.Context) {
	for _, b := range m.Snapshot() {
		m.Destroy(ctx, b.RoomID)
	}
}

// Release empties the live set without remote teardown. Subscriptions and
// stored memory survive for the next run; only the local schedulers halt.
func (m *Manager) Release() {
	m.mu.Lock()
	bots := m.bots
	m.bots = make(map[string]*Bot)
	m.mu.Unlock()
	for _, b := range bots {
		b.quiesce()
	}
}

func (m *Manager) Get(roomID string) (*Bot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bots[roomID]
	return b, ok
}

// Snapshot returns a stable copy of the live set, safe to iterate while
// spawns and destroys proceed.
func (m *Manager) Snapshot() []*Bot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Bot, 0, len(m.bots))
	for _, b := range m.bots {
		out = append(out, b)
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bots)
}
