// Package runtime assembles the platform client, bot manager, dispatcher,
// reconciliation loop and a transport into one runnable unit.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/flint-bot/flint/bot"
	"github.com/flint-bot/flint/dispatch"
	"github.com/flint-bot/flint/lexicon"
	"github.com/flint-bot/flint/platform"
	"github.com/flint-bot/flint/reconcile"
	"github.com/flint-bot/flint/storage"
	"github.com/flint-bot/flint/transport/socket"
	"github.com/flint-bot/flint/transport/webhook"
	"github.com/flint-bot/flint/trigger"
)

type Runtime struct {
	opts       Options
	client     *platform.Client
	self       platform.Person
	store      storage.Store
	lexicon    *lexicon.Registry
	manager    *bot.Manager
	builder    *trigger.Builder
	dispatcher *dispatch.Dispatcher
	reconciler *reconcile.Reconciler
	socket     *socket.Conn
	logger     *slog.Logger
}

// New resolves the runtime's own platform identity and wires every
// component. The returned runtime is inert until Start.
func New(ctx context.Context, opts Options) (*Runtime, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger

	client := platform.New(opts.HTTPClient, opts.BaseURL, opts.Token)
	self, err := client.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve runtime identity: %w", err)
	}
	logger.Info("runtime_identity_resolved", "person_id", self.ID, "email", self.Email())

	r := &Runtime{
		opts:    opts,
		client:  client,
		self:    self,
		store:   opts.Store,
		lexicon: lexicon.NewRegistry(),
		logger:  logger,
	}

	// The manager's subscription hook is late-bound: the reconciler needs
	// the manager, and the hook needs the reconciler.
	manager, err := bot.NewManager(bot.ManagerOptions{
		Client: client,
		Self:   self,
		Store:  opts.Store,
		Logger: logger,
		Config: opts.Bot,
		EnsureSubscription: func(ctx context.Context, roomID string) (string, string, error) {
			if r.reconciler == nil {
				return "", "", nil
			}
			return r.reconciler.EnsureRoomSubscription(ctx, roomID)
		},
		OnSpawn:   opts.Hooks.OnSpawn,
		OnDespawn: opts.Hooks.OnDespawn,
	})
	if err != nil {
		return nil, err
	}
	r.manager = manager

	targetURL := opts.TargetURL
	if opts.Transport == TransportSocket {
		targetURL = ""
	}
	r.reconciler, err = reconcile.New(reconcile.Options{
		Client:    client,
		Manager:   manager,
		Owner:     opts.Name,
		TargetURL: targetURL,
		Secret:    opts.Secret,
		Interval:  opts.ReconcileInterval,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	r.builder = trigger.NewBuilder(client, self, logger)
	r.dispatcher, err = dispatch.New(dispatch.Options{
		Client:  client,
		Self:    self,
		Manager: manager,
		Lexicon: r.lexicon,
		Builder: r.builder,
		Owner:   opts.Name,
		Notify:  opts.Hooks.notify,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	if opts.Transport == TransportSocket {
		r.socket, err = socket.New(socket.Options{
			Client:     client,
			DeviceName: opts.Name,
			Handle: func(ctx context.Context, env dispatch.Envelope) {
				r.dispatcher.Handle(ctx, env)
			},
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Hears registers a command rule. See lexicon.Registry.Hears for matcher
// forms.
func (r *Runtime) Hears(matcher any, handler lexicon.Handler) (*lexicon.Rule, error) {
	return r.lexicon.Hears(matcher, handler)
}

func (r *Runtime) Lexicon() *lexicon.Registry { return r.lexicon }

func (r *Runtime) Manager() *bot.Manager { return r.manager }

func (r *Runtime) Client() *platform.Client { return r.client }

func (r *Runtime) Self() platform.Person { return r.self }

// HTTPHandler serves the runtime's HTTP surface: the webhook delivery
// endpoint at / (webhook transport only) and a liveness probe at /health.
func (r *Runtime) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","bots":%d}`, r.manager.Len())
	})
	if r.opts.Transport == TransportWebhook {
		h := webhook.New(r.opts.Secret, r.logger, func(req *http.Request, env dispatch.Envelope) {
			r.dispatcher.Handle(req.Context(), env)
		})
		mux.Handle("/", h)
	}
	return mux
}

// Start runs the reconciliation loop and, for the socket transport, the push
// connection. It blocks until the context is canceled, then quiesces the
// live instances without tearing down their remote state.
func (r *Runtime) Start(ctx context.Context) error {
	r.logger.Info("runtime_start",
		"name", r.opts.Name,
		"transport", r.opts.Transport,
		"bots", r.manager.Len(),
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.reconciler.Start(ctx)
		return nil
	})
	if r.socket != nil {
		g.Go(func() error {
			return r.socket.Run(ctx)
		})
	}
	err := g.Wait()
	r.manager.Release()
	r.logger.Info("runtime_stopped")
	return err
}
