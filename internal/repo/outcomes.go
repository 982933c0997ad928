package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/modsync/internal/data"
	"github.com/tinoosan/modsync/internal/fp"
)

// Record is a persisted pipeline outcome.
type Record struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	GameID      int       `json:"game_id"`
	ModID       int       `json:"mod_id"`
	NameID      string    `json:"name_id"`
	ModfileID   int       `json:"modfile_id"`
	Filename    string    `json:"filename"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	At          time.Time `json:"at"`
}

// NewRecord converts o into a Record tagged with runID. ID is assigned by
// the repository.
func NewRecord(runID string, o data.Outcome) Record {
	mf := o.Modfile()
	return Record{
		RunID:       runID,
		GameID:      o.GameID,
		ModID:       o.Mod.ID,
		NameID:      o.Mod.NameID,
		ModfileID:   mf.ID,
		Filename:    mf.Filename,
		Status:      o.Status(),
		Message:     o.Message(),
		Fingerprint: fp.Fingerprint(o.GameID, o.Mod.ID, mf.ID, mf.Filename),
		At:          o.At,
	}
}

func (r Record) OK() bool { return r.Status == "ok" }

type OutcomeRepo interface {
	OutcomeReader
	OutcomeWriter
}

type OutcomeReader interface {
	// List returns records oldest first. gameID 0 lists every game; limit
	// <= 0 means no limit and otherwise keeps the newest records.
	List(ctx context.Context, gameID, limit int) ([]Record, error)
	// Latest returns the newest record with the given fingerprint or
	// data.ErrNotFound.
	Latest(ctx context.Context, fingerprint string) (Record, error)
}

type OutcomeWriter interface {
	Add(ctx context.Context, r Record) (Record, error)
}

func newID() string { return uuid.NewString() }
