package runtime

import (
	"github.com/flint-bot/flint/bot"
	"github.com/flint-bot/flint/dispatch"
	"github.com/flint-bot/flint/platform"
)

// Hooks are optional application callbacks fired from the dispatch path.
// All fields may be nil. Handlers run synchronously on the dispatch
// goroutine; long work belongs in the application's own goroutines.
type Hooks struct {
	OnSpawn        func(*bot.Bot)
	OnDespawn      func(*bot.Bot)
	OnEvent        func(kind dispatch.Kind, payload any)
	OnRoomLocked   func(room platform.Room)
	OnRoomUnlocked func(room platform.Room)
}

// notify bridges the dispatcher's generic emission into the typed hook
// surface.
func (h Hooks) notify(kind dispatch.Kind, payload any) {
	if h.OnEvent != nil {
		h.OnEvent(kind, payload)
	}
	switch kind {
	case dispatch.RoomLocked:
		if h.OnRoomLocked != nil {
			if room, ok := payload.(platform.Room); ok {
				h.OnRoomLocked(room)
			}
		}
	case dispatch.RoomUnlocked:
		if h.OnRoomUnlocked != nil {
			if room, ok := payload.(platform.Room); ok {
				h.OnRoomUnlocked(room)
			}
		}
	}
}
