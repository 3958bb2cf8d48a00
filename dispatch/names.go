package dispatch

import "strings"

// Subscription names encode the runtime's own identity plus, for room-scoped
// subscriptions, the room id: "<owner>" for the firehose registration and
// "<owner>:room:<roomID>" for a room's message subscription. The owner prefix
// is how the reconciliation loop and the ownership check tell this runtime's
// registrations apart from a sibling deployment's.

const roomNameInfix = ":room:"

// SubscriptionName builds the name for a room-scoped subscription.
func SubscriptionName(owner, roomID string) string {
	return owner + roomNameInfix + roomID
}

// OwnedName reports whether a subscription name belongs to the given owner
// identity.
func OwnedName(name, owner string) bool {
	name = strings.TrimSpace(name)
	if name == "" || owner == "" {
		return false
	}
	return name == owner || strings.HasPrefix(name, owner+roomNameInfix)
}

// RoomOfName extracts the room id a subscription name is scoped to, or ""
// for an unscoped (firehose) name.
func RoomOfName(name string) string {
	i := strings.Index(name, roomNameInfix)
	if i < 0 {
		return ""
	}
	return name[i+len(roomNameInfix):]
}
