package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/flint-bot/flint/bot"
	"github.com/flint-bot/flint/internal/logutil"
	"github.com/flint-bot/flint/runtime"
	"github.com/flint-bot/flint/storage"
	"github.com/flint-bot/flint/storage/filestore"
	"github.com/flint-bot/flint/storage/memstore"
	"github.com/flint-bot/flint/storage/sqlitestore"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			token := strings.TrimSpace(flagOrViperString(cmd, "token", "token"))
			if token == "" {
				return fmt.Errorf("missing token (set via --token or FLINT_TOKEN)")
			}

			store, closeStore, err := storeFromViper(cmd)
			if err != nil {
				return err
			}
			if closeStore != nil {
				defer closeStore()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := runtime.New(ctx, runtime.Options{
				Token:     token,
				BaseURL:   flagOrViperString(cmd, "base-url", "base_url"),
				Name:      flagOrViperString(cmd, "name", "name"),
				Transport: flagOrViperString(cmd, "transport", "transport"),
				TargetURL: flagOrViperString(cmd, "target-url", "target_url"),
				Secret:    flagOrViperString(cmd, "secret", "secret"),
				Store:     store,
				Logger:    logger,
				Bot: bot.Config{
					ItemDelay:      flagOrViperDuration(cmd, "item-delay", "bot.item_delay"),
					MaxConcurrency: flagOrViperInt(cmd, "max-concurrency", "bot.max_concurrency"),
				},
				ReconcileInterval: flagOrViperDuration(cmd, "reconcile-interval", "reconcile.interval"),
			})
			if err != nil {
				return err
			}

			if path := strings.TrimSpace(flagOrViperString(cmd, "phrasebook", "phrasebook")); path != "" {
				if _, err := rt.LoadPhrasebook(path); err != nil {
					return err
				}
			}

			bind := strings.TrimSpace(flagOrViperString(cmd, "server-bind", "server.bind"))
			if bind == "" {
				bind = "127.0.0.1"
			}
			port := flagOrViperInt(cmd, "server-port", "server.port")
			if port <= 0 {
				port = 7887
			}
			addr := bind + ":" + strconv.Itoa(port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           rt.HTTPHandler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return rt.Start(gctx)
			})
			g.Go(func() error {
				logger.Info("server_start", "addr", addr)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().String("token", "", "Platform access token.")
	cmd.Flags().String("base-url", "", "Platform API root (default: production).")
	cmd.Flags().String("name", "flint", "Runtime identity; prefixes subscription names.")
	cmd.Flags().String("transport", "webhook", "Event transport: webhook|socket.")
	cmd.Flags().String("target-url", "", "Public webhook delivery URL (webhook transport).")
	cmd.Flags().String("secret", "", "Webhook signing secret.")
	cmd.Flags().String("phrasebook", "", "YAML phrasebook of canned command replies.")
	cmd.Flags().String("storage-backend", "memory", "Bot memory backend: memory|file|sqlite.")
	cmd.Flags().String("storage-path", "", "Data directory (file) or database path (sqlite).")
	cmd.Flags().Duration("item-delay", 0, "Pacing delay between batch roster items.")
	cmd.Flags().Int("max-concurrency", 0, "Max in-flight batch roster items.")
	cmd.Flags().Duration("reconcile-interval", 0, "Reconciliation period (default 30s).")
	cmd.Flags().String("server-bind", "127.0.0.1", "Bind address.")
	cmd.Flags().Int("server-port", 7887, "HTTP port for webhook deliveries and /health.")

	return cmd
}

func storeFromViper(cmd *cobra.Command) (storage.Store, func() error, error) {
	backend := strings.TrimSpace(flagOrViperString(cmd, "storage-backend", "storage.backend"))
	path := strings.TrimSpace(flagOrViperString(cmd, "storage-path", "storage.path"))
	switch backend {
	case "", "memory":
		return memstore.New(), nil, nil
	case "file":
		if path == "" {
			path = "flint-data"
		}
		st, err := filestore.New(path)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	case "sqlite":
		if path == "" {
			path = "flint.db"
		}
		st, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q (want memory|file|sqlite)", backend)
	}
}
