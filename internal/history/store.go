// Package history keeps past analysis reports in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/RowanDark/wraith/internal/analyzer"
)

// ErrNotFound is returned when no stored run matches an ID.
var ErrNotFound = errors.New("run not found")

// Summary is the listing view of a stored run.
type Summary struct {
	ID         string        `json:"id"`
	Image      string        `json:"image"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Method     string        `json:"method,omitempty"`
	FinalFlag  string        `json:"final_flag,omitempty"`
	Score      float64       `json:"score"`
	Fragments  int           `json:"fragments"`
	StoredSize int           `json:"stored_size"`
}

// Store persists reports as zstd-compressed JSON.
type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	s := &Store{db: db, enc: enc, dec: dec}
	if err := s.createTables(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		image TEXT NOT NULL,
		started_unix INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		method TEXT,
		final_flag TEXT,
		score REAL DEFAULT 0,
		fragment_count INTEGER DEFAULT 0,
		report BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_unix);
	CREATE INDEX IF NOT EXISTS idx_runs_image ON runs(image);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close releases the database and codecs.
func (s *Store) Close() error {
	s.dec.Close()
	_ = s.enc.Close()
	return s.db.Close()
}

// Save stores r, replacing any run with the same ID.
func (s *Store) Save(ctx context.Context, r *analyzer.Report) error {
	if r == nil || r.ID == "" {
		return errors.New("report with an ID is required")
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	blob := s.enc.EncodeAll(raw, nil)

	var method string
	var score float64
	if r.Decryption != nil {
		method = r.Decryption.Method
		score = r.Decryption.Score
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, image, started_unix, duration_ns, method, final_flag, score, fragment_count, report
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Image, r.StartedAt.UnixNano(), int64(r.Duration()), method, r.FinalFlag, score, len(r.Fragments), blob)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get loads the run whose ID equals id or, failing that, starts with it.
// An ambiguous prefix is an error.
func (s *Store) Get(ctx context.Context, id string) (*analyzer.Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("run id is required")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report FROM runs
		WHERE id = ? OR id LIKE ? ESCAPE '\'
		ORDER BY id = ? DESC
		LIMIT 2
	`, id, likeEscape(id)+"%", id)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	type match struct {
		id   string
		blob []byte
	}
	var matches []match
	for rows.Next() {
		var m match
		if err := rows.Scan(&m.id, &m.blob); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case len(matches) > 1 && matches[0].id != id:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	return s.decode(matches[0].blob)
}

func (s *Store) decode(blob []byte) (*analyzer.Report, error) {
	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress report: %w", err)
	}
	var r analyzer.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// List returns the newest runs first. limit <= 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	return s.query(ctx, "", limit)
}

// Search lists runs whose image name or final flag contains query,
// ignoring ASCII case.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, limit)
	}
	return s.query(ctx, query, limit)
}

func (s *Store) query(ctx context.Context, match string, limit int) ([]Summary, error) {
	q := `SELECT id, image, started_unix, duration_ns, COALESCE(method, ''), COALESCE(final_flag, ''),
		score, fragment_count, length(report) FROM runs`
	var args []any
	if match != "" {
		pattern := "%" + likeEscape(match) + "%"
		q += ` WHERE image LIKE ? ESCAPE '\' OR final_flag LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)
	}
	q += ` ORDER BY started_unix DESC, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum      Summary
			started  int64
			duration int64
		)
		if err := rows.Scan(&sum.ID, &sum.Image, &started, &duration, &sum.Method, &sum.FinalFlag,
			&sum.Score, &sum.Fragments, &sum.StoredSize); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sum.StartedAt = time.Unix(0, started).UTC()
		sum.Duration = time.Duration(duration)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a run by exact ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
