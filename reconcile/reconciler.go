// Package reconcile runs the periodic control loop that converges local bot
// instances and remote subscriptions with the platform's authoritative state.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flint-bot/flint/bot"
	"github.com/flint-bot/flint/dispatch"
	"github.com/flint-bot/flint/internal/retryutil"
	"github.com/flint-bot/flint/platform"
)

const defaultInterval = 30 * time.Second

type Options struct {
	Client  *platform.Client
	Manager *bot.Manager
	// Owner is the subscription-name identity of this runtime instance.
	Owner string
	// TargetURL is the webhook delivery endpoint. Empty when the push socket
	// transport is active; the subscription passes are skipped entirely then.
	TargetURL string
	Secret    string
	Interval  time.Duration
	Logger    *slog.Logger
}

type Reconciler struct {
	client    *platform.Client
	manager   *bot.Manager
	owner     string
	targetURL string
	secret    string
	interval  time.Duration
	logger    *slog.Logger
}

func New(opts Options) (*Reconciler, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("reconciler requires a platform client")
	}
	if opts.Manager == nil {
		return nil, fmt.Errorf("reconciler requires a bot manager")
	}
	if opts.Owner == "" {
		return nil, fmt.Errorf("reconciler requires an owner identity")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		client:    opts.Client,
		manager:   opts.Manager,
		owner:     opts.Owner,
		targetURL: opts.TargetURL,
		secret:    opts.Secret,
		interval:  interval,
		logger:    logger,
	}, nil
}

// Start runs the loop until the context is canceled. One tick runs
// immediately so a fresh runtime converges without waiting a full period.
// Ticks are not serialized against their own outstanding remote calls;
// convergence relies on idempotent teardown and dedup-by-identity on spawn
// rather than mutual exclusion.
func (r *Reconciler) Start(ctx context.Context) {
	r.safeTick(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconcile_stop", "reason", "context_canceled")
			return
		case <-ticker.C:
			r.safeTick(ctx)
		}
	}
}

// safeTick keeps a panic in a pass from crashing the host process.
func (r *Reconciler) safeTick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("reconcile_tick_panic", "panic", fmt.Sprint(rec))
		}
	}()
	r.Tick(ctx)
}

// Tick performs one full convergence pass: dedup subscriptions, fill
// subscription gaps, reap zombies, spawn drones — strictly in that order.
// Each pass degrades independently: a failed remote call is logged and the
// pass retries on the next tick without blocking the rest of this one.
func (r *Reconciler) Tick(ctx context.Context) {
	rooms, roomsErr := r.client.ListRooms(ctx)
	if roomsErr != nil {
		r.logger.Warn("reconcile_rooms_list_error", "error", roomsErr.Error())
	}

	if r.targetURL != "" {
		webhooks, err := r.client.ListWebhooks(ctx)
		if err != nil {
			r.logger.Warn("reconcile_webhooks_list_error", "error", err.Error())
		} else {
			webhooks = r.DedupWebhooks(ctx, webhooks)
			if roomsErr == nil {
				r.fillSubscriptionGaps(ctx, rooms, webhooks)
			}
		}
	}

	if roomsErr != nil {
		return
	}
	r.reapZombies(ctx, rooms)
	r.spawnDrones(ctx, rooms)
}

// DedupWebhooks deletes all but the first subscription of each logical name,
// in platform list order, and returns the deduplicated working set. The
// keep-first tie-break is deliberate policy, and the pass is idempotent: a
// second run over an already-deduplicated set changes nothing.
func (r *Reconciler) DedupWebhooks(ctx context.Context, webhooks []platform.Webhook) []platform.Webhook {
	seen := make(map[string]bool, len(webhooks))
	kept := webhooks[:0]
	for _, wh := range webhooks {
		if !seen[wh.Name] {
			seen[wh.Name] = true
			kept = append(kept, wh)
			continue
		}
		if err := r.client.DeleteWebhook(ctx, wh.ID); err != nil {
			r.logger.Warn("reconcile_dedup_delete_error", "webhook_id", wh.ID, "name", wh.Name, "error", err.Error())
			continue
		}
		r.logger.Info("reconcile_duplicate_webhook_removed", "webhook_id", wh.ID, "name", wh.Name)
	}
	return kept
}

// fillSubscriptionGaps creates a room-scoped subscription for every room
// lacking one owned by this runtime.
func (r *Reconciler) fillSubscriptionGaps(ctx context.Context, rooms []platform.Room, webhooks []platform.Webhook) {
	subscribed := make(map[string]bool)
	for _, wh := range webhooks {
		if !dispatch.OwnedName(wh.Name, r.owner) {
			continue
		}
		if roomID := dispatch.RoomOfName(wh.Name); roomID != "" {
			subscribed[roomID] = true
		}
	}

	for _, room := range rooms {
		if subscribed[room.ID] {
			continue
		}
		if err := r.createRoomSubscription(ctx, room.ID); err != nil {
			r.logger.Warn("reconcile_subscription_create_error", "room_id", room.ID, "error", err.Error())
			roomID := room.ID
			retryutil.AsyncRetry(r.logger, "subscription_create", 0, 0, func(ctx context.Context) error {
				return r.createRoomSubscription(ctx, roomID)
			})
		}
	}
}

// EnsureRoomSubscription resolves the room's owned subscription, creating it
// when absent. Wired into the bot manager as its spawn-time subscription
// hook.
func (r *Reconciler) EnsureRoomSubscription(ctx context.Context, roomID string) (string, string, error) {
	if r.targetURL == "" {
		return "", "", nil
	}
	name := dispatch.SubscriptionName(r.owner, roomID)
	webhooks, err := r.client.ListWebhooks(ctx)
	if err != nil {
		return "", "", err
	}
	for _, wh := range webhooks {
		if wh.Name == name {
			return name, wh.ID, nil
		}
	}
	wh, err := r.client.CreateWebhook(ctx, r.roomSubscriptionSpec(roomID))
	if err != nil {
		return "", "", err
	}
	return name, wh.ID, nil
}

func (r *Reconciler) createRoomSubscription(ctx context.Context, roomID string) error {
	_, err := r.client.CreateWebhook(ctx, r.roomSubscriptionSpec(roomID))
	if err == nil {
		r.logger.Info("reconcile_subscription_created", "room_id", roomID)
	}
	return err
}

func (r *Reconciler) roomSubscriptionSpec(roomID string) platform.WebhookSpec {
	return platform.WebhookSpec{
		Name:      dispatch.SubscriptionName(r.owner, roomID),
		TargetURL: r.targetURL,
		Resource:  "messages",
		Event:     "created",
		Filter:    "roomId=" + roomID,
		Secret:    r.secret,
	}
}

// reapZombies destroys instances whose room vanished remotely. Teardown is
// idempotent, so an instance already mid-teardown from an overlapping tick
// is harmless.
func (r *Reconciler) reapZombies(ctx context.Context, rooms []platform.Room) {
	live := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		live[room.ID] = true
	}
	for _, b := range r.manager.Snapshot() {
		if live[b.RoomID] {
			continue
		}
		r.logger.Info("reconcile_zombie_reaped", "room_id", b.RoomID)
		r.manager.Destroy(ctx, b.RoomID)
	}
}

// spawnDrones creates instances for rooms lacking one.
func (r *Reconciler) spawnDrones(ctx context.Context, rooms []platform.Room) {
	for _, room := range rooms {
		if _, ok := r.manager.Get(room.ID); ok {
			continue
		}
		if _, err := r.manager.Spawn(ctx, room.ID); err != nil {
			r.logger.Warn("reconcile_drone_spawn_error", "room_id", room.ID, "error", err.Error())
		}
	}
}
