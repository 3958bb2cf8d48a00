// Package trigger builds the canonical, enriched command context for one
// inbound message. A Trigger is ephemeral: built once per dispatch, never
// persisted.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flint-bot/flint/platform"
)

// Person is the resolved sender identity.
type Person struct {
	ID          string
	Email       string
	Username    string
	Domain      string
	DisplayName string
}

type Trigger struct {
	ID        string
	Person    Person
	RoomID    string
	RoomType  string
	MessageID string
	Raw       string
	// Text is the normalized message with any leading self-mention removed.
	Text      string
	Args      []string
	Words     map[string]struct{}
	Mentioned []platform.Person
	Files     []platform.Content
	Created   time.Time
	BuiltAt   time.Time
}

type Builder struct {
	client *platform.Client
	self   platform.Person
	logger *slog.Logger
	now    func() time.Time
}

func NewBuilder(client *platform.Client, self platform.Person, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		client: client,
		self:   self,
		logger: logger,
		now:    time.Now,
	}
}

// Build resolves the sender and enriches the raw message into a Trigger.
// Mention and attachment resolution failures drop the item rather than
// failing the whole trigger; a sender that cannot be resolved fails the
// build.
func (b *Builder) Build(ctx context.Context, room platform.Room, msg platform.Message) (*Trigger, error) {
	if b == nil || b.client == nil {
		return nil, fmt.Errorf("trigger builder is not initialized")
	}
	person, err := b.resolvePerson(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("resolve sender: %w", err)
	}

	normalized := NormalizeText(msg.Text)
	normalized = StripSelfMention(normalized, b.self.Email(), b.self.DisplayName)
	args := Tokenize(normalized)

	t := &Trigger{
		ID:        uuid.NewString(),
		Person:    person,
		RoomID:    room.ID,
		RoomType:  room.Type,
		MessageID: msg.ID,
		Raw:       msg.Text,
		Text:      normalized,
		Args:      args,
		Words:     WordSet(args),
		Created:   msg.Created,
		BuiltAt:   b.now(),
	}

	for _, personID := range msg.MentionedPeople {
		if personID == b.self.ID {
			continue
		}
		mentioned, err := b.client.GetPerson(ctx, personID)
		if err != nil {
			b.logger.Debug("trigger_mention_resolve_dropped", "person_id", personID, "error", err.Error())
			continue
		}
		t.Mentioned = append(t.Mentioned, mentioned)
	}

	for _, fileURL := range msg.Files {
		content, err := b.client.GetContent(ctx, fileURL)
		if err != nil {
			b.logger.Debug("trigger_file_resolve_dropped", "url", fileURL, "error", err.Error())
			continue
		}
		t.Files = append(t.Files, content)
	}

	return t, nil
}

func (b *Builder) resolvePerson(ctx context.Context, msg platform.Message) (Person, error) {
	p, err := b.client.GetPerson(ctx, msg.PersonID)
	if err != nil {
		return Person{}, err
	}
	email := p.Email()
	if email == "" {
		email = strings.TrimSpace(msg.PersonEmail)
	}
	username, domain := splitAddress(email)
	return Person{
		ID:          p.ID,
		Email:       email,
		Username:    username,
		Domain:      domain,
		DisplayName: p.DisplayName,
	}, nil
}

func splitAddress(email string) (string, string) {
	email = strings.ToLower(strings.TrimSpace(email))
	i := strings.IndexByte(email, '@')
	if i <= 0 {
		return email, ""
	}
	return email[:i], email[i+1:]
}
