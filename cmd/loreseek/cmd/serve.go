package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loreseek/loreseek/internal/logging"
	mcpserver "github.com/loreseek/loreseek/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to MCP clients over stdio",
		Long: `Start the MCP server. The stdio stream carries JSON-RPC exclusively,
so all diagnostics go to the log file; use 'loreseek status' in a
separate shell to inspect the index.

Register with an MCP client, e.g. Claude Desktop:
  { "command": "loreseek", "args": ["serve"] }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use deterministic embeddings (skip the embedding service)")
	return cmd
}

func runServe(cmd *cobra.Command, offline bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, appOptions{staticEmbedder: offline})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	// Stdout belongs to the protocol from here on.
	cleanup, err := logging.SetupStdioMode(app.Config.Server.LogLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	engines := app.Engines(ctx)
	if len(engines) == 0 {
		return fmt.Errorf("no indexed collections; run 'loreseek rebuild' first")
	}

	srv, err := mcpserver.NewServer(engines, app.Manager)
	if err != nil {
		return err
	}

	slog.Info("serving", slog.Int("collections", len(engines)))
	return srv.Serve(ctx, app.Config.Server.Transport)
}
