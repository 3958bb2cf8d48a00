package platform

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// GetContent downloads a file attachment by its content URL. The platform
// serves attachment bytes from URLs embedded in messages, not from ids, so
// this call bypasses the JSON envelope helpers.
func (c *Client) GetContent(ctx context.Context, contentURL string) (Content, error) {
	contentURL = strings.TrimSpace(contentURL)
	if contentURL == "" {
		return Content{}, fmt.Errorf("content url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return Content{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return Content{}, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return Content{}, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Content{}, &StatusError{Method: http.MethodGet, Path: contentURL, Code: resp.StatusCode}
	}

	name := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			name = params["filename"]
		}
	}
	return Content{
		ID:          contentURL,
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		Bytes:       raw,
	}, nil
}

// RegisterDevice registers this runtime for the persistent push socket and
// returns the record carrying the websocket URL to dial.
func (c *Client) RegisterDevice(ctx context.Context, name string) (Device, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Device{}, fmt.Errorf("device name is required")
	}
	payload := map[string]string{
		"name":       name,
		"deviceType": "DESKTOP",
	}
	var out Device
	if err := c.postJSON(ctx, "/devices", payload, &out); err != nil {
		return Device{}, err
	}
	if strings.TrimSpace(out.WebSocketURL) == "" {
		return Device{}, fmt.Errorf("device registration returned empty websocket url")
	}
	return out, nil
}
