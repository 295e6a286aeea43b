package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ilzarachman/chatbot-helpdesk/internal/api"
	"github.com/ilzarachman/chatbot-helpdesk/internal/app"
	"github.com/ilzarachman/chatbot-helpdesk/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe starts the API server and the ingest worker and blocks until
// a termination signal arrives.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	server := api.NewServer(api.ServerConfig{
		Responder:     a.Orchestrator,
		Turns:         a.Conversations,
		Conversations: a.Conversations,
		Titler:        a.Titler,
		Documents:     a.Documents,
		Ingest:        a.Worker,
		Questions:     a.Questions,
		Pool:          a.Pool,
		RateLimit:     cfg.RateLimit,
		RateBurst:     cfg.RateBurst,
		Logger:        a.Logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.ServerAddr)
	})
	g.Go(func() error {
		err := a.Worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
