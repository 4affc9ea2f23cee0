package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sheikh-saqib/room-billing-ledger/internal/api"
	"github.com/sheikh-saqib/room-billing-ledger/internal/app"
	"github.com/sheikh-saqib/room-billing-ledger/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg := config.Default()

	server := cli.App{
		Name:  "roomledger-server",
		Usage: "serve the room billing ledger over HTTP",
		Flags: cfg.Flags(),
		Action: func(c *cli.Context) error {
			if err := cfg.FromContext(c); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr:              cfg.BindAddress,
				Handler:           api.NewRouter(a.Ledger, a.Registry, a.Log),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.Log.WithError(err).Error("server shutdown")
				}
			}()

			a.Log.WithField("address", cfg.BindAddress).Info("starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			a.Log.Info("server stopped")
			return nil
		},
	}

	if err := server.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
