package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tinoosan/modsync/internal/data"
)

// PostgresRepo implements OutcomeRepo backed by PostgreSQL.
// It keeps one row per outcome in table `mod_outcomes`.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo constructs a repository using the provided DSN and
// creates the schema when missing.
func NewPostgresRepo(ctx context.Context, dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Verify connection
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &PostgresRepo{db: db}
	if err := r.ensureSchema(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepo) Close() error { return r.db.Close() }

func (r *PostgresRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS mod_outcomes (
    id UUID PRIMARY KEY,
    run_id TEXT NOT NULL,
    game_id INTEGER NOT NULL,
    mod_id INTEGER NOT NULL,
    name_id TEXT NOT NULL,
    modfile_id INTEGER NOT NULL DEFAULT 0,
    filename TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    fingerprint TEXT NOT NULL,
    at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS mod_outcomes_fingerprint_at ON mod_outcomes (fingerprint, at DESC);
CREATE INDEX IF NOT EXISTS mod_outcomes_game_at ON mod_outcomes (game_id, at);
`)
	return err
}

const (
	columns    = `id,run_id,game_id,mod_id,name_id,modfile_id,filename,status,message,fingerprint,at`
	selectCols = `id::text,run_id,game_id,mod_id,name_id,modfile_id,filename,status,message,fingerprint,at`
)

// List implements OutcomeReader.List
func (r *PostgresRepo) List(ctx context.Context, gameID, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	// Newest first with LIMIT, then flipped back to oldest first.
	rows, err := r.db.QueryContext(ctx, `
SELECT `+selectCols+` FROM mod_outcomes
WHERE ($1 = 0 OR game_id = $1)
ORDER BY at DESC
LIMIT NULLIF($2, -1)`, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Latest implements OutcomeReader.Latest
func (r *PostgresRepo) Latest(ctx context.Context, fingerprint string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM mod_outcomes WHERE fingerprint=$1 ORDER BY at DESC LIMIT 1`, fingerprint)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, data.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Add implements OutcomeWriter.Add
func (r *PostgresRepo) Add(ctx context.Context, rec Record) (Record, error) {
	rec.ID = newID()
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO mod_outcomes (`+columns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.RunID, rec.GameID, rec.ModID, rec.NameID, rec.ModfileID, rec.Filename, rec.Status, rec.Message, rec.Fingerprint, rec.At)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(rs rowScanner) (Record, error) {
	var rec Record
	err := rs.Scan(&rec.ID, &rec.RunID, &rec.GameID, &rec.ModID, &rec.NameID, &rec.ModfileID,
		&rec.Filename, &rec.Status, &rec.Message, &rec.Fingerprint, &rec.At)
	return rec, err
}
