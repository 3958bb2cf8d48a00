package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flint-bot/flint/bot"
	"github.com/flint-bot/flint/lexicon"
	"github.com/flint-bot/flint/platform"
	"github.com/flint-bot/flint/trigger"
)

// Notify is the generic event emission surface for external observers.
type Notify func(kind Kind, payload any)

type Options struct {
	Client  *platform.Client
	Self    platform.Person
	Manager *bot.Manager
	Lexicon *lexicon.Registry
	Builder *trigger.Builder
	// Owner is the subscription-name identity of this runtime instance.
	Owner  string
	Notify Notify
	Logger *slog.Logger
}

type Dispatcher struct {
	client  *platform.Client
	self    platform.Person
	manager *bot.Manager
	lexicon *lexicon.Registry
	builder *trigger.Builder
	owner   string
	notify  Notify
	logger  *slog.Logger
}

func New(opts Options) (*Dispatcher, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("dispatcher requires a platform client")
	}
	if opts.Manager == nil {
		return nil, fmt.Errorf("dispatcher requires a bot manager")
	}
	if opts.Lexicon == nil {
		return nil, fmt.Errorf("dispatcher requires a lexicon registry")
	}
	if opts.Builder == nil {
		return nil, fmt.Errorf("dispatcher requires a trigger builder")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(Kind, any) {}
	}
	return &Dispatcher{
		client:  opts.Client,
		self:    opts.Self,
		manager: opts.Manager,
		lexicon: opts.Lexicon,
		builder: opts.Builder,
		owner:   opts.Owner,
		notify:  notify,
		logger:  logger,
	}, nil
}

// Handle routes one canonical envelope. Unrecognized pairs, malformed
// envelopes, and envelopes that do not belong to this runtime are dropped
// after a debug trace; nothing here is fatal.
func (d *Dispatcher) Handle(ctx context.Context, env Envelope) {
	kind, ok := kindFor(env.Resource, env.Event)
	if !ok {
		d.logger.Debug("dispatch_unknown_event_dropped", "resource", env.Resource, "event", env.Event)
		return
	}
	if !d.ownsEnvelope(env) {
		d.logger.Debug("dispatch_foreign_envelope_dropped", "name", env.Name, "resource", env.Resource)
		return
	}

	switch kind {
	case RoomCreated:
		d.handleRoomCreated(ctx, env)
	case RoomUpdated:
		d.handleRoomUpdated(ctx, env)
	case MembershipCreated, MembershipUpdated:
		d.handleMembershipChange(ctx, kind, env)
	case MembershipDeleted:
		d.handleMembershipDeleted(ctx, env)
	case MessageCreated:
		d.handleMessageCreated(ctx, env)
	case MessageDeleted:
		d.notify(MessageDeleted, platform.Message{
			ID:          env.Data.ID,
			RoomID:      env.Data.RoomID,
			PersonID:    env.Data.PersonID,
			PersonEmail: env.Data.PersonEmail,
		})
	case AttachmentActionCreated:
		d.handleAttachmentAction(ctx, env)
	}
}

// ownsEnvelope confirms a subscription-sourced envelope belongs to this
// runtime, and if room-scoped, to this runtime's subscription for that room.
// Envelopes without a name (socket transport) pass.
func (d *Dispatcher) ownsEnvelope(env Envelope) bool {
	if env.Name == "" {
		return true
	}
	if !OwnedName(env.Name, d.owner) {
		return false
	}
	if roomID := RoomOfName(env.Name); roomID != "" && env.Data.RoomID != "" && roomID != env.Data.RoomID {
		return false
	}
	return true
}

func (d *Dispatcher) handleRoomCreated(ctx context.Context, env Envelope) {
	room, err := d.client.GetRoom(ctx, env.Data.ID)
	if err != nil {
		d.logger.Warn("dispatch_room_fetch_error", "room_id", env.Data.ID, "error", err.Error())
		return
	}
	d.notify(RoomCreated, room)
	if _, err := d.manager.Spawn(ctx, room.ID); err != nil {
		d.logger.Warn("dispatch_spawn_error", "room_id", room.ID, "error", err.Error())
	}
}

func (d *Dispatcher) handleRoomUpdated(ctx context.Context, env Envelope) {
	room, err := d.client.GetRoom(ctx, env.Data.ID)
	if err != nil {
		d.logger.Warn("dispatch_room_fetch_error", "room_id", env.Data.ID, "error", err.Error())
		return
	}
	d.notify(RoomUpdated, room)

	if b, ok := d.manager.Get(room.ID); ok {
		if room.Locked != b.Room().Locked {
			if room.Locked {
				d.notify(RoomLocked, room)
			} else {
				d.notify(RoomUnlocked, room)
			}
		}
		b.SetRoom(room)
	}
}

func (d *Dispatcher) handleMembershipChange(ctx context.Context, kind Kind, env Envelope) {
	membership, err := d.client.GetMembership(ctx, env.Data.ID)
	if err != nil {
		d.logger.Warn("dispatch_membership_fetch_error", "membership_id", env.Data.ID, "error", err.Error())
		return
	}
	d.notify(kind, membership)

	// Our own membership appearing is the creation-event path for spawning a
	// bot; the reconciliation loop would catch it on its next tick anyway.
	if kind == MembershipCreated && membership.PersonID == d.self.ID {
		if _, err := d.manager.Spawn(ctx, membership.RoomID); err != nil {
			d.logger.Warn("dispatch_spawn_error", "room_id", membership.RoomID, "error", err.Error())
		}
	}
}

func (d *Dispatcher) handleMembershipDeleted(ctx context.Context, env Envelope) {
	// A deleted membership cannot be fetched back; the envelope's
	// denormalized fields are all we get.
	membership := platform.Membership{
		ID:          env.Data.ID,
		RoomID:      env.Data.RoomID,
		PersonID:    env.Data.PersonID,
		PersonEmail: env.Data.PersonEmail,
	}
	d.notify(MembershipDeleted, membership)

	if membership.PersonID == d.self.ID && membership.RoomID != "" {
		d.manager.Destroy(ctx, membership.RoomID)
	}
}

func (d *Dispatcher) handleMessageCreated(ctx context.Context, env Envelope) {
	msg, err := d.client.GetMessage(ctx, env.Data.ID)
	if err != nil {
		d.logger.Warn("dispatch_message_fetch_error", "message_id", env.Data.ID, "error", err.Error())
		return
	}
	// Self-authored messages never reach the trigger builder or the lexicon.
	if msg.PersonID == d.self.ID || (msg.PersonEmail != "" && msg.PersonEmail == d.self.Email()) {
		d.logger.Debug("dispatch_self_message_dropped", "message_id", msg.ID)
		return
	}
	d.notify(MessageCreated, msg)

	b, ok := d.manager.Get(msg.RoomID)
	if !ok {
		b, err = d.manager.Spawn(ctx, msg.RoomID)
		if err != nil {
			d.logger.Warn("dispatch_spawn_error", "room_id", msg.RoomID, "error", err.Error())
			return
		}
	}

	t, err := d.builder.Build(ctx, b.Room(), msg)
	if err != nil {
		d.logger.Warn("dispatch_trigger_build_error", "message_id", msg.ID, "error", err.Error())
		return
	}

	for _, rule := range d.lexicon.Match(t) {
		d.invoke(ctx, rule, b, t)
	}
}

func (d *Dispatcher) handleAttachmentAction(ctx context.Context, env Envelope) {
	// Attachment action lookups live under a dedicated resource path; the
	// envelope data carries enough to route without a second fetch.
	action := platform.AttachmentAction{
		ID:       env.Data.ID,
		RoomID:   env.Data.RoomID,
		PersonID: env.Data.PersonID,
	}
	if action.PersonID == d.self.ID {
		return
	}
	d.notify(AttachmentActionCreated, action)
}

// invoke runs one matched handler, keeping a panicking handler from taking
// down the dispatch loop.
func (d *Dispatcher) invoke(ctx context.Context, rule *lexicon.Rule, b *bot.Bot, t *trigger.Trigger) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("dispatch_handler_panic", "rule_id", rule.ID, "panic", fmt.Sprint(r))
		}
	}()
	if err := rule.Handler(ctx, b, t); err != nil {
		d.logger.Warn("dispatch_handler_error", "rule_id", rule.ID, "error", err.Error())
	}
}
