package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/certflow/pkg/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Model Context Protocol (MCP) server over stdio",
	Long: `Exposes the certflow tools to MCP clients over standard input and output.
Logs go to stderr so they never corrupt the JSON-RPC stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, closeFn, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		v, err := newValidator()
		if err != nil {
			return err
		}
		f, err := newFactory()
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		names, err := labels(cfg.LocaleFile)
		if err != nil {
			return err
		}

		srv, err := mcp.NewCertflowServer(mcp.CertflowServerDeps{
			Service:    svc,
			Validator:  v,
			Factory:    f,
			Engine:     engine,
			Messages:   names,
			IssueLimit: cfg.IssueLimit,
			Version:    version,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		logger.Info("serving MCP over stdio", "db", cfg.DBPath, "engine", engine.Name())
		return srv.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
