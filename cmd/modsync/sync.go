package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinoosan/modsync/internal/archive"
	"github.com/tinoosan/modsync/internal/config"
	"github.com/tinoosan/modsync/internal/downloader/httpdl"
	"github.com/tinoosan/modsync/internal/events"
	"github.com/tinoosan/modsync/internal/install"
	"github.com/tinoosan/modsync/internal/metrics"
	"github.com/tinoosan/modsync/internal/pipeline"
	"github.com/tinoosan/modsync/internal/recorder"
	"github.com/tinoosan/modsync/internal/repo"
	"github.com/tinoosan/modsync/internal/router"
	"github.com/tinoosan/modsync/internal/service"
)

// syncOptions are command-line overrides for a sync run.
type syncOptions struct {
	outputDir   string
	concurrency int
	noLoader    bool
}

func (so *syncOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&so.outputDir, "output", "o", "", "directory the per-game trees are written to")
	f.IntVarP(&so.concurrency, "concurrency", "j", 0, "mods of one game processed at once")
	f.BoolVar(&so.noLoader, "no-loader", false, "skip the BepInEx loader package")
}

func (so *syncOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("output") {
		cfg.OutputDir = so.outputDir
	}
	if f.Changed("concurrency") && so.concurrency > 0 {
		cfg.Concurrency = so.concurrency
	}
	if so.noLoader {
		cfg.InstallLoader = false
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	so := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync [game...]",
		Short: "Download, extract and install subscribed mods",
		Long: `Download, extract and install the subscribed mods of the selected games.
Games are named by mod.io name_id or numeric id; without arguments the
games from the configuration are used, and when none are configured every
subscribed game is synced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, so, args)
		},
	}
	so.bind(cmd)
	return cmd
}

func runSync(cmd *cobra.Command, opts *rootOptions, so *syncOptions, games []string) error {
	ctx := cmd.Context()
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	cfg, log := s.cfg, s.log
	so.apply(cmd, cfg)
	if len(games) > 0 {
		cfg.Games = games
	}

	api, err := s.modio()
	if err != nil {
		return err
	}
	selected, err := api.ResolveGames(ctx, cfg.Games)
	if err != nil {
		return fmt.Errorf("resolve games: %w", err)
	}
	if len(selected) == 0 {
		return fmt.Errorf("none of the selected games %v have subscribed mods", cfg.Games)
	}

	metrics.Register()
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	bus := events.NewBus()

	granter := install.PlatformGranter{}
	instOpts := cfg.InstallOptions()
	fetcher := httpdl.NewClient(httpdl.Options{
		Timeout:      cfg.FetchTimeout,
		MaxRedirects: cfg.MaxRedirects,
		UserAgent:    "modsync/" + Version,
		Token:        cfg.APIToken,
		Logger:       log,
	})
	pipe := pipeline.New(log, fetcher, archive.Zip{}, granter, pipeline.Options{
		OutputDir:   cfg.OutputDir,
		StagingName: instOpts.StagingName,
		Concurrency: cfg.Concurrency,
	})
	svc := service.NewSync(log, pipe, install.New(log, instOpts, granter), recorder.New(log, store, bus), cfg.GameDir)

	if cfg.Status.Listen != "" {
		stop := serveStatus(log, cfg.Status.Listen, router.Deps{Sync: svc, Outcomes: store, Bus: bus, Token: cfg.Status.Token})
		defer stop()
	}

	rep := svc.Sync(ctx, selected)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error("write metrics textfile", "path", cfg.MetricsFile, "err", err)
		}
	}
	printSummary(cmd.OutOrStdout(), rep)

	if err := ctx.Err(); err != nil {
		return err
	}
	if rep.Failed() {
		return &ExitError{Code: 1}
	}
	return nil
}

// openStore returns the Postgres repository when database_url is set and
// an in-memory one otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repo.OutcomeRepo, func(), error) {
	if cfg.DatabaseURL == "" {
		return repo.NewInMemoryOutcomeRepo(), func() {}, nil
	}
	pg, err := repo.NewPostgresRepo(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open outcome store: %w", err)
	}
	log.Info("recording outcomes in postgres")
	return pg, func() {
		if err := pg.Close(); err != nil {
			log.Warn("close outcome store", "err", err)
		}
	}, nil
}

// serveStatus starts the status server in the background. The returned
// func shuts it down gracefully.
func serveStatus(log *slog.Logger, addr string, deps router.Deps) func() {
	server := &http.Server{
		Addr:              addr,
		Handler:           router.New(log, deps),
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("starting status server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server error", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("shutdown status server", "err", err)
		}
	}
}
