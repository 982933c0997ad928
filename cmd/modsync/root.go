package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tinoosan/modsync/internal/config"
	"github.com/tinoosan/modsync/internal/logging"
	"github.com/tinoosan/modsync/internal/modio"
)

type rootOptions struct {
	configPath string
	verbose    int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	so := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "modsync",
		Short: "Download and install subscribed mod.io mods",
		Long: `modsync downloads every mod.io mod you are subscribed to for the selected
games, unpacks the archives, finds the plugin payload inside each one and
assembles a BepInEx install tree per game. Running without a subcommand
is the same as "modsync sync".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, so, nil)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", fmt.Sprintf("config file (default %s)", config.DefaultPath()))
	cmd.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "log debug output to the console")
	so.bind(cmd)

	cmd.AddCommand(newSyncCmd(opts), newListCmd(opts), newVersionCmd())
	return cmd
}

// session is the configuration and logger shared by subcommands.
type session struct {
	cfg   *config.Config
	log   *slog.Logger
	close func() error
}

func openSession(cmd *cobra.Command, opts *rootOptions) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if opts.verbose > 0 {
		level = "debug"
	}
	log, closeLog, err := logging.New(logging.Options{
		Level:      level,
		Console:    cmd.ErrOrStderr(),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}
	log.Debug("command started", "command", cmd.Name(), "config", opts.configPath)
	return &session{cfg: cfg, log: log, close: closeLog}, nil
}

func (s *session) modio() (*modio.Client, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	return modio.New(modio.Options{BaseURL: s.cfg.APIURL, Token: s.cfg.APIToken, Logger: s.log})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "modsync version %s\n", Version)
			_, _ = fmt.Fprintf(out, "  commit: %s\n", Commit)
			_, _ = fmt.Fprintf(out, "  built:  %s\n", BuildDate)
		},
	}
}
