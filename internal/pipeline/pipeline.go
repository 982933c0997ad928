// Package pipeline downloads and extracts every subscribed mod of a game
// into its scratch directory, producing one Outcome per mod.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/tinoosan/modsync/internal/archive"
	"github.com/tinoosan/modsync/internal/data"
	"github.com/tinoosan/modsync/internal/downloader"
	"github.com/tinoosan/modsync/internal/install"
	"github.com/tinoosan/modsync/internal/workdir"
)

// ErrReservedName is reported for mods whose name_id would map onto one of
// the fixed per-game directories.
var ErrReservedName = errors.New("mod name_id is reserved")

type Options struct {
	OutputDir   string
	StagingName string
	// Concurrency bounds the mods of one game processed at once. Values
	// below 1 mean sequential processing.
	Concurrency int
}

// Pipeline drives a Fetcher and an Extractor for each mod.
type Pipeline struct {
	fetcher   downloader.Fetcher
	extractor archive.Extractor
	granter   install.Granter
	opts      Options
	log       *slog.Logger
}

func New(log *slog.Logger, f downloader.Fetcher, x archive.Extractor, g install.Granter, opts Options) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if g == nil {
		g = install.NopGranter{}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Pipeline{fetcher: f, extractor: x, granter: g, opts: opts, log: log}
}

// Dirs returns the working directories used for g.
func (p *Pipeline) Dirs(g *data.Game) workdir.Dirs {
	return workdir.For(p.opts.OutputDir, g, p.opts.StagingName)
}

// Prepare validates g's mod list, zeroes its counters and recreates its
// working tree.
func (p *Pipeline) Prepare(g *data.Game) (workdir.Dirs, error) {
	g.Reset()
	if err := g.ValidateMods(); err != nil {
		return workdir.Dirs{}, err
	}
	d := p.Dirs(g)
	if err := d.Reset(); err != nil {
		return workdir.Dirs{}, err
	}
	return d, nil
}

// Run processes games one after another and streams an Outcome for every
// mod. The channel is closed once all games are done or ctx is cancelled.
// Each call starts a fresh pass; the caller must drain the channel or
// cancel ctx.
func (p *Pipeline) Run(ctx context.Context, games ...*data.Game) <-chan data.Outcome {
	out := make(chan data.Outcome)
	go func() {
		defer close(out)
		for _, g := range games {
			if ctx.Err() != nil {
				return
			}
			p.runGame(ctx, g, out)
		}
	}()
	return out
}

func (p *Pipeline) runGame(ctx context.Context, g *data.Game, out chan<- data.Outcome) {
	log := p.log.With("game", g.NameID, "game_id", g.ID)
	dirs, err := p.Prepare(g)
	if err != nil {
		log.Error("prepare game", "err", err)
		for _, m := range g.Mods {
			g.MarkDownloadFailed()
			if !emit(ctx, out, data.Failure(g.ID, m, data.StageDownload, err)) {
				return
			}
		}
		return
	}
	log.Info("processing game", "mods", len(g.Mods), "dir", dirs.Root)

	var eg errgroup.Group
	eg.SetLimit(p.opts.Concurrency)
	for _, m := range g.Mods {
		if ctx.Err() != nil {
			break
		}
		m := m
		eg.Go(func() error {
			emit(ctx, out, p.processMod(ctx, log, g, dirs, m))
			return nil
		})
	}
	_ = eg.Wait()

	st := g.Stats()
	log.Info("game processed", "total", st.Total, "downloaded", st.Downloaded, "extracted", st.Extracted,
		"failed_download", st.FailedDownload, "failed_extract", st.FailedExtract)
}

func (p *Pipeline) processMod(ctx context.Context, log *slog.Logger, g *data.Game, dirs workdir.Dirs, m data.Mod) data.Outcome {
	log = log.With("mod", m.NameID, "mod_id", m.ID)

	fail := func(stage data.Stage, err error) data.Outcome {
		if stage == data.StageDownload {
			g.MarkDownloadFailed()
		} else {
			g.MarkExtractFailed()
		}
		log.Error(string(stage)+" failed", "err", err)
		return data.Failure(g.ID, m, stage, err)
	}

	if dirs.Reserved(m) {
		return fail(data.StageDownload, fmt.Errorf("%w: %q", ErrReservedName, m.NameID))
	}
	modDir, holdDir := dirs.ModDir(m), dirs.HoldingDir(m)
	for _, d := range []string{modDir, holdDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fail(data.StageDownload, err)
		}
	}

	// The archive never shares a directory with its extracted entries.
	archivePath := filepath.Join(holdDir, m.ArchiveName())
	log.Info("downloading", "url", m.Modfile.DownloadURL)
	if err := p.fetcher.Fetch(ctx, m.Modfile.DownloadURL, archivePath); err != nil {
		return fail(data.StageDownload, err)
	}
	g.MarkDownloaded()

	if err := p.granter.GrantFullAccess(archivePath); err != nil {
		log.Warn("grant access", "path", archivePath, "err", err)
	}

	if err := p.extractor.Extract(ctx, archivePath, modDir); err != nil {
		return fail(data.StageExtract, err)
	}
	g.MarkExtracted()
	log.Info("extracted", "dir", modDir, "archive", archivePath)
	return data.Success(g.ID, m)
}

func emit(ctx context.Context, out chan<- data.Outcome, o data.Outcome) bool {
	select {
	case out <- o:
		return true
	case <-ctx.Done():
		return false
	}
}
