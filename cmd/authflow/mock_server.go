package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-flow/internal/config"
	"github.com/jrsteele09/go-auth-flow/mockapi"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newMockServerCmd(cfg func() config.Config) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory session API for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			displayAppname(cmd, c.GetAppName())

			backend := mockapi.New(c)
			if seed {
				if err := seedDemoUser(backend); err != nil {
					return err
				}
			}

			ctx, stop := signalContext()
			defer stop()
			return logErr(serve(ctx, &http.Server{Addr: c.GetMockAddr(), Handler: backend}), "mock server stopped with error")
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "create the demo user (username demo, password secret1, mobile 09120000000)")
	return cmd
}

func seedDemoUser(backend *mockapi.Server) error {
	_, err := backend.SeedUser(mockapi.User{
		PhoneNumber: "09120000000",
		Username:    "demo",
		FirstName:   "Demo",
		LastName:    "User",
		DateJoined:  mockapi.NowTimeFunc(),
	}, "secret1")
	if err != nil {
		return fmt.Errorf("seeding demo user: %w", err)
	}
	log.Info().Str("username", "demo").Msg("demo user seeded")
	return nil
}

// serve runs server until ctx is cancelled, then shuts it down gracefully
func serve(ctx context.Context, server *http.Server) error {
	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("mock session API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("server.ListenAndServe %w", err)
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("mock session API stopped")
	return nil
}
