// Package socket maintains a persistent push connection to the platform and
// feeds inbound frames to the dispatcher. It is the webhook-less transport
// for deployments without a public ingress.
package socket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flint-bot/flint/dispatch"
	"github.com/flint-bot/flint/platform"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	readTimeout    = 90 * time.Second
	pingInterval   = 30 * time.Second
)

type Options struct {
	Client *platform.Client
	// DeviceName identifies this runtime in the platform's device registry.
	DeviceName string
	Handle     func(ctx context.Context, env dispatch.Envelope)
	Logger     *slog.Logger
}

type Conn struct {
	client     *platform.Client
	deviceName string
	handle     func(ctx context.Context, env dispatch.Envelope)
	logger     *slog.Logger
}

func New(opts Options) (*Conn, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("socket transport requires a platform client")
	}
	if opts.Handle == nil {
		return nil, fmt.Errorf("socket transport requires a handle func")
	}
	name := opts.DeviceName
	if name == "" {
		name = "flint"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		client:     opts.Client,
		deviceName: name,
		handle:     opts.Handle,
		logger:     logger,
	}, nil
}

// Run connects and reads frames until the context is canceled. Connection
// loss triggers a fresh device registration and redial with capped
// exponential backoff; the backoff resets after any successful session.
func (c *Conn) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		started := time.Now()
		err := c.session(ctx)
		if time.Since(started) > time.Minute {
			backoff = initialBackoff
		}
		if ctx.Err() != nil {
			c.logger.Info("socket_stop", "reason", "context_canceled")
			return nil
		}
		if err != nil {
			c.logger.Warn("socket_session_error", "error", err.Error(), "backoff", backoff.String())
		}
		select {
		case <-ctx.Done():
			c.logger.Info("socket_stop", "reason", "context_canceled")
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session registers a device, dials its socket URL and pumps frames until
// the connection drops. Any error means redial.
func (c *Conn) session(ctx context.Context) error {
	device, err := c.client.RegisterDevice(ctx, c.deviceName)
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, device.WebSocketURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", device.WebSocketURL, err)
	}
	defer ws.Close()
	c.logger.Info("socket_connected", "device_id", device.ID)

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go c.pingLoop(ctx, ws, done)

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		env, err := dispatch.DecodeEnvelope(frame)
		if err != nil {
			c.logger.Debug("socket_frame_rejected", "error", err.Error())
			continue
		}
		c.handle(ctx, env)
	}
}

func (c *Conn) pingLoop(ctx context.Context, ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			ws.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
