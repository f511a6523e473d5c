package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/server"
)

var Version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "sessionsync",
		Short:         "Mirror planning.domains sessions and sync edits back",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(loadCmd(flags))
	rootCmd.AddCommand(openCmd(flags))
	rootCmd.AddCommand(lsCmd(flags))
	rootCmd.AddCommand(catalogCmd(flags))

	server.Version = Version
	return rootCmd
}

// load reads configuration: the file when one is given, else the
// environment.
func (f *globalFlags) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	return cfg, nil
}

func (f *globalFlags) logger(cfg *config.Config) *logging.Logger {
	return logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
}
