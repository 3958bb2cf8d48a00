package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

func (c *Client) GetMembership(ctx context.Context, membershipID string) (Membership, error) {
	membershipID = strings.TrimSpace(membershipID)
	if membershipID == "" {
		return Membership{}, fmt.Errorf("membership id is required")
	}
	var out Membership
	if err := c.getJSON(ctx, "/memberships/"+url.PathEscape(membershipID), nil, &out); err != nil {
		return Membership{}, err
	}
	return out, nil
}

func (c *Client) ListMemberships(ctx context.Context, roomID string) ([]Membership, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}
	q := url.Values{}
	q.Set("roomId", roomID)
	var out listPage[Membership]
	if err := c.getJSON(ctx, "/memberships", q, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// MyMembership resolves the runtime's own membership in a room.
func (c *Client) MyMembership(ctx context.Context, roomID, personID string) (Membership, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return Membership{}, fmt.Errorf("person id is required")
	}
	items, err := c.ListMemberships(ctx, roomID)
	if err != nil {
		return Membership{}, err
	}
	for _, m := range items {
		if m.PersonID == personID {
			return m, nil
		}
	}
	return Membership{}, fmt.Errorf("no membership for person %s in room %s", personID, roomID)
}

func (c *Client) AddMembership(ctx context.Context, roomID, personEmail string) (Membership, error) {
	roomID = strings.TrimSpace(roomID)
	personEmail = strings.TrimSpace(personEmail)
	if roomID == "" {
		return Membership{}, fmt.Errorf("room id is required")
	}
	if personEmail == "" {
		return Membership{}, fmt.Errorf("person email is required")
	}
	payload := map[string]string{
		"roomId":      roomID,
		"personEmail": personEmail,
	}
	var out Membership
	if err := c.postJSON(ctx, "/memberships", payload, &out); err != nil {
		return Membership{}, err
	}
	return out, nil
}

func (c *Client) DeleteMembership(ctx context.Context, membershipID string) error {
	membershipID = strings.TrimSpace(membershipID)
	if membershipID == "" {
		return fmt.Errorf("membership id is required")
	}
	return c.delete(ctx, "/memberships/"+url.PathEscape(membershipID))
}
