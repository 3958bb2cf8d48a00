package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

func (c *Client) GetRoom(ctx context.Context, roomID string) (Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return Room{}, fmt.Errorf("room id is required")
	}
	var out Room
	if err := c.getJSON(ctx, "/rooms/"+url.PathEscape(roomID), nil, &out); err != nil {
		return Room{}, err
	}
	return out, nil
}

// ListRooms returns every room the authenticated account occupies. This is the
// authoritative room set the reconciliation loop converges against.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var out listPage[Room]
	if err := c.getJSON(ctx, "/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}
	return c.delete(ctx, "/rooms/"+url.PathEscape(roomID))
}
