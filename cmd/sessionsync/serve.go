package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/server"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		port      string
		mirrorDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and websocket stream",
		Long: `Serve the session API.

Examples:
  sessionsync serve --port 8000
  sessionsync serve --mirror-dir ./work   # keep session files on disk`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			if mirrorDir != "" {
				cfg.Workspace.MirrorDir = mirrorDir
			}

			srv, err := server.NewServer(cfg)
			if err != nil {
				return err
			}
			defer srv.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides config)")
	cmd.Flags().StringVar(&mirrorDir, "mirror-dir", "", "mirror session files into this directory")
	return cmd
}
