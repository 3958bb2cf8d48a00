package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Me returns the account this runtime authenticates as. The result is cached
// by callers, not by the client.
func (c *Client) Me(ctx context.Context) (Person, error) {
	var out Person
	if err := c.getJSON(ctx, "/people/me", nil, &out); err != nil {
		return Person{}, err
	}
	return out, nil
}

func (c *Client) GetPerson(ctx context.Context, personID string) (Person, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return Person{}, fmt.Errorf("person id is required")
	}
	var out Person
	if err := c.getJSON(ctx, "/people/"+url.PathEscape(personID), nil, &out); err != nil {
		return Person{}, err
	}
	return out, nil
}
