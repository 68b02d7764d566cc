package main

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/fyrsmithlabs/docrag/internal/http"
	mcpserver "github.com/fyrsmithlabs/docrag/internal/mcp"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve search, ask and collection endpoints over HTTP until interrupted.
Prometheus metrics are exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, cleanup, err := c.start(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			sc := a.Config.Server
			if cmd.Flags().Changed("host") {
				sc.Host = host
			}
			if cmd.Flags().Changed("port") {
				sc.Port = port
			}

			srv, err := httpapi.NewServer(a.Services, a.Logger.Named("http"), &httpapi.Config{
				Host:    sc.Host,
				Port:    sc.Port,
				Version: version,
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, nethttp.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sc.ShutdownTimeout.Duration())
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "http shutdown incomplete", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default server.port)")
	return cmd
}

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long: `Expose search_documents, ask_documents and list_collections as MCP tools
over stdin and stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, _, cleanup, err := c.start(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			srv, err := mcpserver.NewServer(&mcpserver.Config{
				Name:    a.Config.MCP.Name,
				Version: version,
				Logger:  a.Logger.Named("mcp"),
			}, a.Services)
			if err != nil {
				return err
			}
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
