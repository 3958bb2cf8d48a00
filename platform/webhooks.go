package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ListWebhooks returns the authoritative remote subscription set, in platform
// list order. The reconciliation dedup pass keeps the first of each name.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var out listPage[Webhook]
	if err := c.getJSON(ctx, "/webhooks", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) CreateWebhook(ctx context.Context, spec WebhookSpec) (Webhook, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return Webhook{}, fmt.Errorf("webhook name is required")
	}
	if strings.TrimSpace(spec.TargetURL) == "" {
		return Webhook{}, fmt.Errorf("webhook target url is required")
	}
	if strings.TrimSpace(spec.Resource) == "" || strings.TrimSpace(spec.Event) == "" {
		return Webhook{}, fmt.Errorf("webhook resource and event are required")
	}
	var out Webhook
	if err := c.postJSON(ctx, "/webhooks", spec, &out); err != nil {
		return Webhook{}, err
	}
	return out, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		return fmt.Errorf("webhook id is required")
	}
	return c.delete(ctx, "/webhooks/"+url.PathEscape(webhookID))
}
