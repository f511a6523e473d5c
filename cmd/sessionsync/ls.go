package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/server"
	"github.com/GriffinCanCode/sessionsync/internal/vfs"
)

func lsCmd(flags *globalFlags) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "ls <session-id>",
		Short: "List the files of a remote session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			cfg.Workspace.MirrorDir = ""

			engine, err := server.NewEngine(cfg, flags.logger(cfg), nil, nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			session, err := engine.Remote.FetchSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			files, err := vfs.Match(session.Files, "/", match)
			if err != nil {
				return err
			}
			for _, name := range files {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&match, "match", "m", "", "only list names matching this glob")
	return cmd
}
