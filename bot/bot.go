// Package bot holds the per-room bot instance, its lifecycle manager, and
// the per-instance task scheduler. Exactly one bot exists per live room; the
// reconciliation loop enforces that invariant.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flint-bot/flint/platform"
	"github.com/flint-bot/flint/storage"
)

// Config carries the per-instance knobs shared by every bot a manager spawns.
type Config struct {
	// ItemDelay paces consecutive remote calls in batch operations.
	ItemDelay      time.Duration
	MaxConcurrency int
	RepeatSweep    time.Duration
	OnceSweep      time.Duration
}

func (c Config) normalize() Config {
	if c.ItemDelay <= 0 {
		c.ItemDelay = 500 * time.Millisecond
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 2
	}
	return c
}

// Bot is the runtime's local representative for one room. It owns the room's
// private memory scope, both task queues, and the room's named
// subscriptions.
type Bot struct {
	// RoomID never changes for the life of the instance.
	RoomID     string
	Membership platform.Membership

	client *platform.Client
	self   platform.Person
	store  storage.Store
	logger *slog.Logger
	sched  *Scheduler
	cfg    Config

	mu      sync.Mutex
	room    platform.Room     // refreshed by roomUpdated events
	subs    map[string]string // subscription name -> webhook id
	stopped bool
}

func newBot(client *platform.Client, self platform.Person, store storage.Store, logger *slog.Logger, cfg Config, room platform.Room, membership platform.Membership) *Bot {
	return &Bot{
		RoomID:     room.ID,
		Membership: membership,
		client:     client,
		self:       self,
		store:      store,
		logger:     logger.With("room_id", room.ID),
		sched:      NewScheduler(logger, cfg.RepeatSweep, cfg.OnceSweep),
		cfg:        cfg,
		room:       room,
		subs:       make(map[string]string),
	}
}

// Room returns the latest room snapshot. Snapshots are refreshed by
// roomUpdated events on the dispatch goroutine, so reads go through the lock.
func (b *Bot) Room() platform.Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.room
}

// SetRoom replaces the room snapshot after a roomUpdated event.
func (b *Bot) SetRoom(room platform.Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = room
}

// Say sends plain text to the bot's room. Trailing arguments format the text
// fmt-style.
func (b *Bot) Say(ctx context.Context, text string, args ...any) error {
	if len(args) > 0 {
		text = fmt.Sprintf(text, args...)
	}
	_, err := b.client.SendMessage(ctx, platform.MessageSpec{RoomID: b.RoomID, Text: text})
	return err
}

// SayMessage sends a structured payload (markdown, attachments) to the
// bot's room. Any target already on the spec is overridden.
func (b *Bot) SayMessage(ctx context.Context, spec platform.MessageSpec) error {
	spec.RoomID = b.RoomID
	spec.ToPersonEmail = ""
	_, err := b.client.SendMessage(ctx, spec)
	return err
}

// DM sends plain text to a direct conversation with an address.
func (b *Bot) DM(ctx context.Context, email, text string, args ...any) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if len(args) > 0 {
		text = fmt.Sprintf(text, args...)
	}
	_, err := b.client.SendMessage(ctx, platform.MessageSpec{ToPersonEmail: email, Text: text})
	return err
}

func (b *Bot) DMMessage(ctx context.Context, email string, spec platform.MessageSpec) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	spec.ToPersonEmail = email
	spec.RoomID = ""
	_, err := b.client.SendMessage(ctx, spec)
	return err
}

// Add invites one or more addresses to the room. Each address is validated
// before the remote call; invalid addresses fail per item without aborting
// the batch. The error is non-nil unless every item succeeded.
func (b *Bot) Add(ctx context.Context, emails ...string) (BatchResult, error) {
	result := runBatch(ctx, emails, b.cfg.MaxConcurrency, b.cfg.ItemDelay, ValidateEmail,
		func(ctx context.Context, email string) error {
			_, err := b.client.AddMembership(ctx, b.RoomID, email)
			return err
		})
	return result, result.err()
}

// Remove evicts one or more addresses from the room, with the same batch
// semantics as Add.
func (b *Bot) Remove(ctx context.Context, emails ...string) (BatchResult, error) {
	result := runBatch(ctx, emails, b.cfg.MaxConcurrency, b.cfg.ItemDelay, ValidateEmail,
		func(ctx context.Context, email string) error {
			memberships, err := b.client.ListMemberships(ctx, b.RoomID)
			if err != nil {
				return err
			}
			for _, m := range memberships {
				if m.PersonEmail == email {
					return b.client.DeleteMembership(ctx, m.ID)
				}
			}
			return fmt.Errorf("no membership for %s in room %s", email, b.RoomID)
		})
	return result, result.err()
}

// Implode removes every occupant except the runtime itself, waits long enough
// for the removals to be reflected remotely, then deletes the room.
func (b *Bot) Implode(ctx context.Context) error {
	memberships, err := b.client.ListMemberships(ctx, b.RoomID)
	if err != nil {
		return fmt.Errorf("implode list memberships: %w", err)
	}

	var victims []string
	for _, m := range memberships {
		if m.PersonID == b.self.ID {
			continue
		}
		victims = append(victims, m.ID)
	}
	result := runBatch(ctx, victims, b.cfg.MaxConcurrency, b.cfg.ItemDelay, nil,
		func(ctx context.Context, membershipID string) error {
			return b.client.DeleteMembership(ctx, membershipID)
		})
	if result.Failed > 0 {
		b.logger.Warn("implode_eviction_incomplete", "failed", result.Failed, "total", result.Total)
	}

	// Give the platform time to settle the removals before the room delete,
	// proportional to occupant count.
	if err := sleepWithContext(ctx, time.Duration(len(victims))*b.cfg.ItemDelay); err != nil {
		return err
	}
	return b.client.DeleteRoom(ctx, b.RoomID)
}

// Store persists a value in the bot's private memory, namespaced by room id.
func (b *Bot) Store(ctx context.Context, key string, value any) error {
	if key == "" {
		return fmt.Errorf("store key is required")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.store.Create(ctx, b.RoomID, key, raw)
}

// Recall loads a stored value into out. storage.ErrNotFound is returned for
// an absent key.
func (b *Bot) Recall(ctx context.Context, key string, out any) error {
	if key == "" {
		return fmt.Errorf("recall key is required")
	}
	raw, err := b.store.Read(ctx, b.RoomID, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (b *Bot) Forget(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("forget key is required")
	}
	return b.store.Delete(ctx, b.RoomID, key)
}

// ForgetAll drops the whole memory scope for the room.
func (b *Bot) ForgetAll(ctx context.Context) error {
	return b.store.DeleteScope(ctx, b.RoomID)
}

// Repeat registers a recurring task on the bot's repeater queue.
func (b *Bot) Repeat(action func(), interval time.Duration) error {
	return b.sched.AddRepeat(action, interval)
}

// Once registers a one-shot task on the bot's date-scheduled queue.
func (b *Bot) Once(action func(), at time.Time) error {
	return b.sched.AddOnce(action, at)
}

func (b *Bot) Scheduler() *Scheduler {
	return b.sched
}

// AttachSubscription records a named remote subscription as owned by this
// bot, so teardown can detach it.
func (b *Bot) AttachSubscription(name, webhookID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = webhookID
}

// SubscriptionID reports the webhook id recorded for a subscription name.
func (b *Bot) SubscriptionID(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.subs[name]
	return id, ok
}

// quiesce halts the task queues without touching remote subscriptions or
// stored memory. Used at process shutdown, where the room is still live and
// a future run should find its state intact.
func (b *Bot) quiesce() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()
	b.sched.Stop()
}

// stop is the full idempotent teardown: cancel both task queues, detach all
// named subscriptions, release memory. Tolerates being called while another
// teardown is mid-flight.
func (b *Bot) stop(ctx context.Context) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	subs := b.subs
	b.subs = make(map[string]string)
	b.mu.Unlock()

	b.sched.Stop()
	for name, webhookID := range subs {
		if err := b.client.DeleteWebhook(ctx, webhookID); err != nil {
			b.logger.Debug("bot_subscription_detach_error", "name", name, "error", err.Error())
		}
	}
	if err := b.store.DeleteScope(ctx, b.RoomID); err != nil {
		b.logger.Debug("bot_memory_release_error", "error", err.Error())
	}
}
