package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"jitterpace/internal/probe"
	"jitterpace/pkg/logx"
	"jitterpace/pkg/pace"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	MaxAge      time.Duration // 0 = keep forever
	MaxRows     int           // 0 = unbounded
	BusyTimeout time.Duration
}

// Store is a SQLite-backed report log. SQLite prefers a single writer, so
// the pool is capped at one connection.
type Store struct {
	db  *sql.DB
	log logx.Logger
	cfg Config

	opCount    atomic.Uint64
	pruneEvery uint64
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &Store{db: db, log: log, cfg: cfg, pruneEvery: 50}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores one run report and occasionally prunes old rows.
func (s *Store) Append(ctx context.Context, r probe.Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports(
			probe, started, finished, period_ns, iterations, missed, runtime_ns,
			jitter_count, jitter_min_ns, jitter_max_ns, jitter_avg_ns, jitter_median_ns,
			dur_count, dur_min_ns, dur_max_ns, dur_avg_ns, dur_median_ns)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.Probe,
		r.Started.Format(time.RFC3339Nano),
		r.Finished.Format(time.RFC3339Nano),
		int64(r.Period), r.Iterations, r.Missed, int64(r.Runtime),
		r.Jitter.Count, int64(r.Jitter.Smallest), int64(r.Jitter.Largest),
		int64(r.Jitter.Average), int64(r.Jitter.Median),
		r.Durations.Count, int64(r.Durations.Smallest), int64(r.Durations.Largest),
		int64(r.Durations.Average), int64(r.Durations.Median),
	)
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}

	if n := s.opCount.Add(1); n%s.pruneEvery == 0 {
		if perr := s.Prune(ctx); perr != nil {
			s.log.Warn("history prune failed", logx.Err(perr))
		}
	}
	return nil
}

// Recent returns up to limit reports, newest first. An empty probeName
// matches all probes.
func (s *Store) Recent(ctx context.Context, probeName string, limit int) ([]probe.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT probe, started, finished, period_ns, iterations, missed, runtime_ns,
		jitter_count, jitter_min_ns, jitter_max_ns, jitter_avg_ns, jitter_median_ns,
		dur_count, dur_min_ns, dur_max_ns, dur_avg_ns, dur_median_ns
		FROM reports`
	args := []any{}
	if probeName != "" {
		q += ` WHERE probe = ?`
		args = append(args, probeName)
	}
	q += ` ORDER BY started DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []probe.Report
	for rows.Next() {
		var (
			r                   probe.Report
			started, finished   string
			periodNS, runtimeNS int64
			js, ds              statsCols
		)
		if err := rows.Scan(
			&r.Probe, &started, &finished, &periodNS, &r.Iterations, &r.Missed, &runtimeNS,
			&js.count, &js.min, &js.max, &js.avg, &js.median,
			&ds.count, &ds.min, &ds.max, &ds.avg, &ds.median,
		); err != nil {
			return nil, err
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		r.Period = time.Duration(periodNS)
		r.Runtime = time.Duration(runtimeNS)
		r.Jitter = js.stats()
		r.Durations = ds.stats()
		out = append(out, r)
	}
	return out, rows.Err()
}

type statsCols struct {
	count                 int
	min, max, avg, median int64
}

func (c statsCols) stats() pace.Stats {
	return pace.Stats{
		Count:    c.count,
		Smallest: time.Duration(c.min),
		Largest:  time.Duration(c.max),
		Average:  time.Duration(c.avg),
		Median:   time.Duration(c.median),
	}
}

// Prune applies the age and row-count retention policies.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.MaxAge > 0 {
		cutoff := time.Now().Add(-s.cfg.MaxAge).Format(time.RFC3339Nano)
		if _, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE started < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxRows > 0 {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM reports WHERE id NOT IN (SELECT id FROM reports ORDER BY started DESC LIMIT ?)`,
			s.cfg.MaxRows)
		if err != nil {
			return err
		}
	}
	return nil
}
