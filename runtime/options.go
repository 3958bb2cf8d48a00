package runtime

import (
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/flint-bot/flint/bot"
	"github.com/flint-bot/flint/storage"
	"github.com/flint-bot/flint/storage/memstore"
)

// Transport selects how platform events reach the runtime.
const (
	TransportWebhook = "webhook"
	TransportSocket  = "socket"
)

type Options struct {
	// Token authenticates every platform call.
	Token string
	// BaseURL overrides the platform API root. Empty means production.
	BaseURL string
	// Name is this runtime's identity: it prefixes subscription names and
	// labels the push socket device.
	Name string
	// Transport is TransportWebhook or TransportSocket.
	Transport string
	// TargetURL is the public webhook delivery endpoint. Required for the
	// webhook transport, unused for the socket transport.
	TargetURL string
	// Secret signs webhook deliveries when set.
	Secret string

	Store             storage.Store
	HTTPClient        *http.Client
	Logger            *slog.Logger
	Bot               bot.Config
	ReconcileInterval time.Duration
	Hooks             Hooks
}

func (o Options) normalize() (Options, error) {
	if o.Token == "" {
		return o, fmt.Errorf("runtime: token is required")
	}
	if o.Name == "" {
		o.Name = "flint"
	}
	switch o.Transport {
	case "":
		o.Transport = TransportWebhook
	case TransportWebhook, TransportSocket:
	default:
		return o, fmt.Errorf("runtime: unknown transport %q", o.Transport)
	}
	if o.Transport == TransportWebhook && o.TargetURL == "" {
		return o, fmt.Errorf("runtime: webhook transport requires a target URL")
	}
	if o.Store == nil {
		o.Store = memstore.New()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o, nil
}
