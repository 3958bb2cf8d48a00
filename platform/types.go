package platform

import "time"

// Room kinds as reported by the platform.
const (
	RoomTypeDirect = "direct"
	RoomTypeGroup  = "group"
)

// Room is a remote conversation space. It is refreshed wholesale from the
// platform, never diffed field by field locally.
type Room struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	Locked       bool      `json:"isLocked"`
	Created      time.Time `json:"created"`
	LastActivity time.Time `json:"lastActivity"`
}

// Person is a platform account. Emails[0] is the primary address.
type Person struct {
	ID          string    `json:"id"`
	Emails      []string  `json:"emails"`
	DisplayName string    `json:"displayName"`
	Created     time.Time `json:"created"`
}

// Email returns the primary address, or "" when the platform reported none.
func (p Person) Email() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}

type Membership struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	PersonID    string    `json:"personId"`
	PersonEmail string    `json:"personEmail"`
	IsModerator bool      `json:"isModerator"`
	Created     time.Time `json:"created"`
}

type Message struct {
	ID              string    `json:"id"`
	RoomID          string    `json:"roomId"`
	RoomType        string    `json:"roomType"`
	PersonID        string    `json:"personId"`
	PersonEmail     string    `json:"personEmail"`
	Text            string    `json:"text"`
	Markdown        string    `json:"markdown,omitempty"`
	Files           []string  `json:"files,omitempty"`
	MentionedPeople []string  `json:"mentionedPeople,omitempty"`
	Created         time.Time `json:"created"`
}

// MessageSpec is an outbound message. Exactly one of RoomID or ToPersonEmail
// must be set.
type MessageSpec struct {
	RoomID        string   `json:"roomId,omitempty"`
	ToPersonEmail string   `json:"toPersonEmail,omitempty"`
	Text          string   `json:"text,omitempty"`
	Markdown      string   `json:"markdown,omitempty"`
	Files         []string `json:"files,omitempty"`
}

type Webhook struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TargetURL string    `json:"targetUrl"`
	Resource  string    `json:"resource"`
	Event     string    `json:"event"`
	Filter    string    `json:"filter,omitempty"`
	Secret    string    `json:"secret,omitempty"`
	Created   time.Time `json:"created"`
}

// WebhookSpec is the creation payload for a webhook registration.
type WebhookSpec struct {
	Name      string `json:"name"`
	TargetURL string `json:"targetUrl"`
	Resource  string `json:"resource"`
	Event     string `json:"event"`
	Filter    string `json:"filter,omitempty"`
	Secret    string `json:"secret,omitempty"`
}

// Content is a resolved file attachment.
type Content struct {
	ID          string
	Name        string
	ContentType string
	Bytes       []byte
}

type AttachmentAction struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	MessageID string         `json:"messageId"`
	RoomID    string         `json:"roomId"`
	PersonID  string         `json:"personId"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	Created   time.Time      `json:"created"`
}

// Device is the registration record for the persistent push socket.
type Device struct {
	ID           string `json:"id"`
	WebSocketURL string `json:"webSocketUrl"`
}
