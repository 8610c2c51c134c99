package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-optim/internal/server"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the image tools over MCP on stdin/stdout",
	Long: `Run an MCP (Model Context Protocol) server on stdin/stdout exposing the
image_info, image_optim and image_pipeline tools.

Logs go to stderr; stdout carries only protocol messages. Configure it in
your MCP client as the command "image-optim mcp".`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(_ *cobra.Command, _ []string) error {
	runner := newRunner(cfg, logger)
	defer runner.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(runner, server.Options{
		AutoOutputTypes: cfg.Optim.AutoOutputTypes,
		Logger:          logger,
	})
	return srv.Run(ctx)
}
