package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/sweep"
)

// migrations is an ordered list of SQL statements applied on startup.
// Each entry is idempotent (IF NOT EXISTS) so re-running is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS handshakes (
		id              TEXT PRIMARY KEY,
		kem             TEXT NOT NULL,
		security_level  TEXT NOT NULL,
		outcome         TEXT NOT NULL,
		error           TEXT NOT NULL DEFAULT '',
		qkd_used        INTEGER NOT NULL DEFAULT 0,
		sift_len        INTEGER NOT NULL DEFAULT 0,
		sample_size     INTEGER NOT NULL DEFAULT 0,
		qber            REAL NOT NULL DEFAULT 0,
		leakage_bits    INTEGER NOT NULL DEFAULT 0,
		residual_errors INTEGER NOT NULL DEFAULT 0,
		distance_km     REAL NOT NULL DEFAULT 0,
		prob_reach      REAL NOT NULL DEFAULT 0,
		duration_ns     INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sweep_points (
		id                   TEXT PRIMARY KEY,
		sweep_id             TEXT NOT NULL,
		seq                  INTEGER NOT NULL,
		distance_km          REAL NOT NULL,
		prob_reach           REAL NOT NULL,
		runs                 INTEGER NOT NULL,
		no_sifted_bits       INTEGER NOT NULL,
		qber_exceeded        INTEGER NOT NULL,
		agreed               INTEGER NOT NULL,
		mean_sift_len        REAL NOT NULL,
		stddev_sift_len      REAL NOT NULL,
		qber_runs            INTEGER NOT NULL,
		mean_qber            REAL NOT NULL,
		stddev_qber          REAL NOT NULL,
		mean_leakage_bits    REAL NOT NULL,
		mean_residual_errors REAL NOT NULL,
		created_at           TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sweep_points_sweep ON sweep_points (sweep_id, seq)`,
}

// timeLayout has fixed-width fractions so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite handles one writer at a time.

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// --- Handshakes ---

const handshakeColumns = `id, kem, security_level, outcome, error, qkd_used, sift_len, sample_size,
	qber, leakage_bits, residual_errors, distance_km, prob_reach, duration_ns, created_at`

func (s *SQLiteStore) SaveHandshake(ctx context.Context, r *HandshakeRecord) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO handshakes (`+handshakeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.KEM, r.SecurityLevel, r.Outcome, r.Error, r.QKDUsed, r.SiftLen, r.SampleSize,
		r.QBER, r.LeakageBits, r.ResidualErrors, r.DistanceKM, r.ProbReach,
		r.Duration.Nanoseconds(), r.CreatedAt.UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) GetHandshake(ctx context.Context, id string) (*HandshakeRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+handshakeColumns+` FROM handshakes WHERE id = ?`, id)
	r, err := scanHandshake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("handshake %s: %w", id, qerrors.ErrNotFound)
	}
	return r, err
}

// ListHandshakes returns the newest records first. A non-positive limit
// returns all records.
func (s *SQLiteStore) ListHandshakes(ctx context.Context, limit int) ([]*HandshakeRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+handshakeColumns+` FROM handshakes ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []*HandshakeRecord
	for rows.Next() {
		r, err := scanHandshake(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHandshake(sc scanner) (*HandshakeRecord, error) {
	var r HandshakeRecord
	var durationNS int64
	var created string
	if err := sc.Scan(&r.ID, &r.KEM, &r.SecurityLevel, &r.Outcome, &r.Error, &r.QKDUsed,
		&r.SiftLen, &r.SampleSize, &r.QBER, &r.LeakageBits, &r.ResidualErrors,
		&r.DistanceKM, &r.ProbReach, &durationNS, &created); err != nil {
		return nil, err
	}
	r.Duration = time.Duration(durationNS)
	r.CreatedAt, _ = time.Parse(timeLayout, created)
	return &r, nil
}

// --- Sweeps ---

func (s *SQLiteStore) SaveSweep(ctx context.Context, points []sweep.Point) (string, error) {
	sweepID := newID()
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback() //nolint:errcheck

	for i, p := range points {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sweep_points (id, sweep_id, seq, distance_km, prob_reach, runs, no_sifted_bits,
				qber_exceeded, agreed, mean_sift_len, stddev_sift_len, qber_runs, mean_qber, stddev_qber,
				mean_leakage_bits, mean_residual_errors, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newID(), sweepID, i, p.DistanceKM, p.ProbReach, p.Runs, p.NoSiftedBits,
			p.QBERExceeded, p.Agreed, p.MeanSiftLen, p.StdDevSiftLen, p.QBERRuns, p.MeanQBER, p.StdDevQBER,
			p.MeanLeakage, p.MeanResidual, now)
		if err != nil {
			return "", fmt.Errorf("insert sweep point %d: %w", i, err)
		}
	}
	return sweepID, tx.Commit()
}

func (s *SQLiteStore) ListSweepPoints(ctx context.Context, sweepID string) ([]*SweepPointRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sweep_id, distance_km, prob_reach, runs, no_sifted_bits, qber_exceeded, agreed,
			mean_sift_len, stddev_sift_len, qber_runs, mean_qber, stddev_qber, mean_leakage_bits,
			mean_residual_errors, created_at
		 FROM sweep_points WHERE sweep_id = ? ORDER BY seq`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []*SweepPointRecord
	for rows.Next() {
		var r SweepPointRecord
		var created string
		p := &r.Point
		if err := rows.Scan(&r.ID, &r.SweepID, &p.DistanceKM, &p.ProbReach, &p.Runs, &p.NoSiftedBits,
			&p.QBERExceeded, &p.Agreed, &p.MeanSiftLen, &p.StdDevSiftLen, &p.QBERRuns, &p.MeanQBER,
			&p.StdDevQBER, &p.MeanLeakage, &p.MeanResidual, &created); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sweep %s: %w", sweepID, qerrors.ErrNotFound)
	}
	return out, nil
}
