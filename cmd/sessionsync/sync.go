package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionsync/internal/domain/resolver"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/server"
)

// syncOptions are shared by load and open.
type syncOptions struct {
	dir    string
	once   bool
	unload bool
}

func (o *syncOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.dir, "dir", "d", "", "directory to mirror the session into (default: config mirror_dir or .)")
	cmd.Flags().BoolVar(&o.once, "once", false, "exit after loading instead of syncing")
	cmd.Flags().BoolVar(&o.unload, "unload", false, "remove the session files on exit")
}

// withEngine runs fn against an engine mirroring into a directory, then keeps
// syncing until interrupted unless --once is set.
func withEngine(cmd *cobra.Command, flags *globalFlags, opts *syncOptions, fn func(ctx context.Context, e *server.Engine) (string, error)) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	switch {
	case opts.dir != "":
		cfg.Workspace.MirrorDir = opts.dir
	case cfg.Workspace.MirrorDir == "":
		cfg.Workspace.MirrorDir = "."
	}
	if cfg.Workspace.MirrorDir, err = filepath.Abs(cfg.Workspace.MirrorDir); err != nil {
		return err
	}

	logger := flags.logger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prompter := newTerminalPrompter(os.Stdin, cmd.ErrOrStderr())
	engine, err := server.NewEngine(cfg, logger, nil, prompter)
	if err != nil {
		return err
	}
	defer engine.Close()

	sessionID, err := fn(ctx, engine)
	if err != nil {
		return err
	}
	if sessionID == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "No session loaded.")
		return nil
	}

	out := cmd.OutOrStdout()
	printStatus(out, engine, cfg.Workspace.MirrorDir)
	if opts.once {
		return nil
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Syncing local edits. Press Ctrl-C to stop.")
	<-ctx.Done()

	if opts.unload {
		if err := engine.Controller.Unload(context.Background()); err != nil {
			logger.Warn("Failed to unload session", zap.Error(err))
		}
	}
	status := engine.Controller.Status()
	fmt.Fprintf(out, "Stopped. %d uploads, %d failed.\n", status.Uploads, status.UploadErrs)
	return nil
}

func printStatus(w io.Writer, e *server.Engine, mirrorDir string) {
	status := e.Controller.Status()
	dir := filepath.Join(mirrorDir, filepath.FromSlash(e.Controller.Root()))
	fmt.Fprintf(w, "Session %s: %d files in %s\n", status.SessionID, len(status.Files), dir)
	for _, name := range status.Files {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

func loadCmd(flags *globalFlags) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "load [session-id]",
		Short: "Load a session into a local folder and sync edits back",
		Long: `Load a session into a local folder and sync edits back.

Without a session id you are prompted for one. Files that fail to download
are reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requested := ""
			if len(args) == 1 {
				requested = args[0]
			}
			return withEngine(cmd, flags, opts, func(ctx context.Context, e *server.Engine) (string, error) {
				return e.Resolver.LoadSession(ctx, requested)
			})
		},
	}
	opts.bind(cmd)
	return cmd
}

func openCmd(flags *globalFlags) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "open <uri>",
		Short: "Load the session a planning.domains deep link points to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, opts, func(ctx context.Context, e *server.Engine) (string, error) {
				sessionID, matched, err := e.Resolver.Resolve(ctx, args[0])
				if err != nil {
					return "", err
				}
				if !matched {
					return "", errNotSessionLink
				}
				return sessionID, nil
			})
		},
	}
	opts.bind(cmd)
	return cmd
}

var errNotSessionLink = errors.New("not a planning.domains session link")

var _ resolver.Prompter = (*terminalPrompter)(nil)
