package recorder

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/tinoosan/modsync/internal/data"
	"github.com/tinoosan/modsync/internal/events"
	"github.com/tinoosan/modsync/internal/metrics"
	"github.com/tinoosan/modsync/internal/repo"
)

// Recorder consumes pipeline outcomes: it logs them, counts them, persists
// them and forwards them to live subscribers.
type Recorder struct {
	repo     repo.OutcomeRepo
	reporter events.Reporter
	log      *slog.Logger
	runID    string
}

// New creates a Recorder. Every outcome it stores is tagged with a fresh
// run id. repo and reporter may be nil.
func New(log *slog.Logger, r repo.OutcomeRepo, rep events.Reporter) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	runID := uuid.NewString()
	return &Recorder{repo: r, reporter: rep, log: log.With("operation_id", runID), runID: runID}
}

func (r *Recorder) RunID() string { return r.runID }

// Drain handles every outcome from in until it is closed and returns them
// in arrival order.
func (r *Recorder) Drain(ctx context.Context, in <-chan data.Outcome) []data.Outcome {
	var out []data.Outcome
	for o := range in {
		r.Handle(ctx, o)
		out = append(out, o)
	}
	return out
}

// Handle records a single outcome. Storage failures are logged and never
// returned.
func (r *Recorder) Handle(ctx context.Context, o data.Outcome) {
	metrics.ModOutcomes.WithLabelValues(strconv.Itoa(o.GameID), o.Status()).Inc()

	log := r.log.With("game_id", o.GameID, "mod", o.Mod.NameID, "mod_id", o.Mod.ID, "file", o.Modfile().Filename)
	if o.OK() {
		log.Info("mod ready")
	} else {
		log.Error("mod failed", "stage", o.Stage, "err", o.Err)
	}

	if r.repo != nil {
		rec := repo.NewRecord(r.runID, o)
		r.compare(ctx, log, rec)
		if _, err := r.repo.Add(ctx, rec); err != nil {
			log.Error("store outcome", "err", err)
		}
	}
	if r.reporter != nil {
		r.reporter.Report(o)
	}
}

// compare logs status changes of the same modfile across runs.
func (r *Recorder) compare(ctx context.Context, log *slog.Logger, rec repo.Record) {
	prev, err := r.repo.Latest(ctx, rec.Fingerprint)
	switch {
	case errors.Is(err, data.ErrNotFound):
		return
	case err != nil:
		log.Warn("load previous outcome", "err", err)
		return
	}
	switch {
	case prev.OK() && !rec.OK():
		log.Warn("modfile regressed", "previous_run", prev.RunID, "previous_at", prev.At)
	case !prev.OK() && rec.OK():
		log.Info("modfile recovered", "previous_run", prev.RunID, "previous_status", prev.Status)
	}
}
