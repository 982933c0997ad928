package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tinoosan/modsync/internal/data"
	"github.com/tinoosan/modsync/internal/install"
	"github.com/tinoosan/modsync/internal/pipeline"
	"github.com/tinoosan/modsync/internal/recorder"
)

// Phase is where a game currently is in a sync run.
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseProcessing Phase = "processing"
	PhaseInstalling Phase = "installing"
	PhaseDone       Phase = "done"
)

// Sync drives the download, extract and install passes for a set of games
// and exposes their progress.
type Sync interface {
	Sync(ctx context.Context, games []*data.Game) Report
	Games() []GameStatus
}

// GameStatus is a point-in-time view of one game.
type GameStatus struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	NameID    string     `json:"name_id"`
	Phase     Phase      `json:"phase"`
	Stats     data.Stats `json:"stats"`
	Installed int        `json:"installed"`
	Published bool       `json:"published"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// GameReport is the result of syncing one game.
type GameReport struct {
	Game     *data.Game
	Stats    data.Stats
	Outcomes []data.Outcome
	Install  install.Report
}

// Failed reports whether any mod of the game failed to download, extract
// or install, or the publish step failed.
func (r GameReport) Failed() bool {
	if r.Stats.Failed() > 0 || r.Install.PublishErr != nil {
		return true
	}
	for _, m := range r.Install.Mods {
		if m.Status != install.StatusInstalled && m.Status != install.StatusLoaderDisabled {
			return true
		}
	}
	return false
}

type Report struct {
	OperationID string
	Games       []GameReport
}

func (r Report) Failed() bool {
	for _, g := range r.Games {
		if g.Failed() {
			return true
		}
	}
	return false
}

// GameDirFunc returns the external install directory for a game, or "".
type GameDirFunc func(nameID, id string) string

type syncer struct {
	pipe    *pipeline.Pipeline
	inst    *install.Installer
	rec     *recorder.Recorder
	gameDir GameDirFunc
	log     *slog.Logger

	mu     sync.RWMutex
	games  []*data.Game
	status []*GameStatus
}

func NewSync(log *slog.Logger, pipe *pipeline.Pipeline, inst *install.Installer, rec *recorder.Recorder, gameDir GameDirFunc) Sync {
	if log == nil {
		log = slog.Default()
	}
	if gameDir == nil {
		gameDir = func(string, string) string { return "" }
	}
	return &syncer{pipe: pipe, inst: inst, rec: rec, gameDir: gameDir, log: log}
}

// Sync processes games one after another. Per game it downloads and
// extracts every mod, records each outcome, installs what was extracted
// and finally publishes the staging tree to the game's directory. No
// per-mod failure stops the run.
func (s *syncer) Sync(ctx context.Context, games []*data.Game) Report {
	rep := Report{OperationID: s.rec.RunID()}
	log := s.log.With("operation_id", rep.OperationID)

	s.mu.Lock()
	s.games = games
	s.status = make([]*GameStatus, len(games))
	for i, g := range games {
		s.status[i] = &GameStatus{ID: g.ID, Name: g.Name, NameID: g.NameID, Phase: PhasePending, UpdatedAt: time.Now()}
	}
	s.mu.Unlock()

	for i, g := range games {
		if ctx.Err() != nil {
			log.Warn("sync cancelled", "remaining_games", len(games)-i)
			break
		}
		rep.Games = append(rep.Games, s.syncGame(ctx, log, i, g))
	}
	return rep
}

func (s *syncer) syncGame(ctx context.Context, log *slog.Logger, idx int, g *data.Game) GameReport {
	log = log.With("game", g.NameID, "game_id", g.ID)
	s.setPhase(idx, g, PhaseProcessing)

	outcomes := s.rec.Drain(ctx, s.pipe.Run(ctx, g))
	gr := GameReport{Game: g, Stats: g.Stats(), Outcomes: outcomes}

	ok := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			ok[o.Mod.NameID] = true
		}
	}
	// Install in subscription order regardless of completion order.
	var ready []data.Mod
	for _, m := range g.Mods {
		if ok[m.NameID] {
			ready = append(ready, m)
		}
	}

	s.setPhase(idx, g, PhaseInstalling)
	dirs := s.pipe.Dirs(g)
	gr.Install = s.inst.InstallGame(ctx, g, dirs, ready)

	if target := s.gameDir(g.NameID, g.Key()); target != "" && gr.Install.Installed() > 0 {
		gr.Install.PublishDir = target
		published, err := s.inst.Publish(ctx, dirs.Staging, target)
		gr.Install.Published, gr.Install.PublishErr = published, err
		if err != nil {
			log.Error("publish failed", "dir", target, "err", err)
		}
	}

	s.mu.Lock()
	st := s.status[idx]
	st.Phase, st.Stats, st.Installed, st.Published, st.UpdatedAt = PhaseDone, gr.Stats, gr.Install.Installed(), gr.Install.Published, time.Now()
	s.mu.Unlock()

	log.Info("game synced",
		"total", gr.Stats.Total,
		"downloaded", gr.Stats.Downloaded,
		"extracted", gr.Stats.Extracted,
		"failed_download", gr.Stats.FailedDownload,
		"failed_extract", gr.Stats.FailedExtract,
		"installed", gr.Install.Installed(),
		"published", gr.Install.Published)
	return gr
}

func (s *syncer) setPhase(idx int, g *data.Game, p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[idx]
	st.Phase, st.Stats, st.UpdatedAt = p, g.Stats(), time.Now()
}

// Games returns a snapshot of every game in the current or last run. Live
// counters are read from the games while they are processed.
func (s *syncer) Games() []GameStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GameStatus, len(s.status))
	for i, st := range s.status {
		out[i] = *st
		if st.Phase == PhaseProcessing {
			out[i].Stats = s.games[i].Stats()
		}
	}
	return out
}
