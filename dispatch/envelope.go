// Package dispatch normalizes inbound platform events from either transport
// into one canonical taxonomy and routes them to lifecycle and command
// callbacks.
package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the canonical event taxonomy. The first eight map to platform
// (resource, verb) pairs; the rest are higher-level lifecycle events emitted
// for external observers.
type Kind string

const (
	RoomCreated             Kind = "roomCreated"
	RoomUpdated             Kind = "roomUpdated"
	MembershipCreated       Kind = "membershipCreated"
	MembershipUpdated       Kind = "membershipUpdated"
	MembershipDeleted       Kind = "membershipDeleted"
	MessageCreated          Kind = "messageCreated"
	MessageDeleted          Kind = "messageDeleted"
	AttachmentActionCreated Kind = "attachmentActionCreated"

	Spawn        Kind = "spawn"
	Despawn      Kind = "despawn"
	RoomLocked   Kind = "roomLocked"
	RoomUnlocked Kind = "roomUnlocked"
)

// Envelope is the logical event shape shared by the webhook transport and
// the push socket: resource type, event verb, and the bare identifier of the
// changed object. Name and Filter are present on subscription-sourced
// envelopes and drive the ownership check.
type Envelope struct {
	Resource string       `json:"resource"`
	Event    string       `json:"event"`
	Name     string       `json:"name,omitempty"`
	Filter   string       `json:"filter,omitempty"`
	ActorID  string       `json:"actorId,omitempty"`
	Data     EnvelopeData `json:"data"`
}

// EnvelopeData carries the bare identifier plus whatever denormalized fields
// the platform includes. Deleted objects cannot be fetched back, so their
// handlers fall back to these fields.
type EnvelopeData struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId,omitempty"`
	RoomType    string `json:"roomType,omitempty"`
	PersonID    string `json:"personId,omitempty"`
	PersonEmail string `json:"personEmail,omitempty"`
}

// DecodeEnvelope parses and validates a raw envelope. Malformed envelopes
// are rejected here so both transports share one validation path.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope json: %w", err)
	}
	env.Resource = strings.TrimSpace(env.Resource)
	env.Event = strings.TrimSpace(env.Event)
	env.Data.ID = strings.TrimSpace(env.Data.ID)
	if env.Resource == "" || env.Event == "" {
		return Envelope{}, fmt.Errorf("envelope resource and event are required")
	}
	if env.Data.ID == "" {
		return Envelope{}, fmt.Errorf("envelope data.id is required")
	}
	return env, nil
}

// kindFor maps a platform (resource, verb) pair onto the canonical taxonomy.
func kindFor(resource, event string) (Kind, bool) {
	switch resource + "/" + event {
	case "rooms/created":
		return RoomCreated, true
	case "rooms/updated":
		return RoomUpdated, true
	case "memberships/created":
		return MembershipCreated, true
	case "memberships/updated":
		return MembershipUpdated, true
	case "memberships/deleted":
		return MembershipDeleted, true
	case "messages/created":
		return MessageCreated, true
	case "messages/deleted":
		return MessageDeleted, true
	case "attachmentActions/created":
		return AttachmentActionCreated, true
	default:
		return "", false
	}
}
