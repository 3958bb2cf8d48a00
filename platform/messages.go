package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

func (c *Client) GetMessage(ctx context.Context, messageID string) (Message, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return Message{}, fmt.Errorf("message id is required")
	}
	var out Message
	if err := c.getJSON(ctx, "/messages/"+url.PathEscape(messageID), nil, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}

// SendMessage posts a message to a room or a direct conversation depending on
// which target the spec carries.
func (c *Client) SendMessage(ctx context.Context, spec MessageSpec) (Message, error) {
	if strings.TrimSpace(spec.RoomID) == "" && strings.TrimSpace(spec.ToPersonEmail) == "" {
		return Message{}, fmt.Errorf("message target is required (roomId or toPersonEmail)")
	}
	if strings.TrimSpace(spec.Text) == "" && strings.TrimSpace(spec.Markdown) == "" && len(spec.Files) == 0 {
		return Message{}, fmt.Errorf("message content is required")
	}
	var out Message
	if err := c.postJSON(ctx, "/messages", spec, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}
