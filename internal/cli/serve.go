package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/collage/internal/api"
	"github.com/matzehuels/collage/pkg/session"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		baseURL string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the collage HTTP API",
		Long: `Serve the collage HTTP API.

Clients create a session, upload photos into its slots, reorder them and
request exports. Exports answer with a share link or a download link.
Share links and downloads are kept in Redis when [redis] addr is set, so
several servers can hand them out; otherwise they live in this process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, baseURL, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "public URL prefix for links (default: server.base_url)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the re-encoded source cache")

	return cmd
}

// runServe blocks until ctx is cancelled.
func (c *CLI) runServe(ctx context.Context, addr, baseURL string, noCache bool) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	shares, release, err := newShareStore(ctx, cfg, cfg.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("connect share backend: %w", err)
	}
	defer release()

	backend := "memory"
	if cfg.Redis.Enabled() {
		backend = "redis " + cfg.Redis.Addr
	}
	logger.Info("starting server", "addr", cfg.Server.Addr, "shares", backend)

	srv := api.New(api.Options{
		Config:   cfg,
		Runner:   runner,
		Sessions: session.NewMemoryStore(cfg.Server.SessionTTL),
		Shares:   shares,
		Logger:   logger,
	})
	if err := srv.Run(ctx); err != nil {
		return err
	}
	return ctx.Err()
}
