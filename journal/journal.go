// Package journal records EXDot runs in a SQLite database. Each program is
// stored once, keyed by its content hash; each run stores its outcome and
// the CBOR encoded report including the final snapshot.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/exdot/vm"
	"github.com/chazu/exdot/vm/dist"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("exdot.journal")

// ErrNotFound is returned when a run or program is not in the journal.
var ErrNotFound = errors.New("journal: not found")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS programs (
		hash TEXT PRIMARY KEY,
		chunk BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		hash TEXT NOT NULL REFERENCES programs(hash),
		name TEXT NOT NULL,
		status INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		started INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		report BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(hash)`,
}

// Journal is an open run journal.
type Journal struct {
	db *sql.DB
}

// Entry summarizes one recorded run.
type Entry struct {
	RunID    string
	Name     string
	Hash     dist.Hash
	Status   vm.Status
	Steps    uint64
	Started  time.Time
	Duration time.Duration
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}
	for _, query := range schema {
		if _, err := db.Exec(query); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create journal tables: %w", err)
		}
	}
	log.Debugf("opened journal %s", path)
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores the program c, unless a program with the same hash is
// already present, and the run r. A run without an ID is given a new one.
// It returns the run ID.
func (j *Journal) Record(c *dist.Chunk, r *dist.Report) (string, error) {
	if r.Hash != c.Hash {
		return "", fmt.Errorf("journal: report for %s does not match program %s", r.Hash.Short(), c.Hash.Short())
	}
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}

	chunk, err := dist.MarshalChunk(c)
	if err != nil {
		return "", err
	}
	report, err := dist.MarshalReport(r)
	if err != nil {
		return "", err
	}

	tx, err := j.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO programs (hash, chunk, created_at) VALUES (?, ?, ?)`,
		c.Hash.String(), chunk, time.Now().UnixNano(),
	); err != nil {
		return "", fmt.Errorf("journal: store program: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO runs (id, hash, name, status, steps, started, duration, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, c.Hash.String(), c.Name, r.Status.Code(), int64(r.Steps),
		r.Started.UnixNano(), int64(r.Duration), report,
	); err != nil {
		return "", fmt.Errorf("journal: store run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Debugf("recorded run %s of %s: %s", r.RunID, c.Hash.Short(), r.Status)
	return r.RunID, nil
}

// Get returns the full report of run id.
func (j *Journal) Get(id string) (*dist.Report, error) {
	var data []byte
	err := j.db.QueryRow(`SELECT report FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return dist.UnmarshalReport(data)
}

// List returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (j *Journal) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		`SELECT id, name, hash, status, steps, started, duration FROM runs
		 ORDER BY started DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                        Entry
			hash                     string
			status                   int
			steps, started, duration int64
		)
		if err := rows.Scan(&e.RunID, &e.Name, &hash, &status, &steps, &started, &duration); err != nil {
			return nil, err
		}
		if e.Hash, err = dist.ParseHash(hash); err != nil {
			return nil, fmt.Errorf("run %s: bad hash %q: %w", e.RunID, hash, err)
		}
		e.Status = vm.Status(status)
		e.Steps = uint64(steps)
		e.Started = time.Unix(0, started)
		e.Duration = time.Duration(duration)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Chunk returns the program stored under h.
func (j *Journal) Chunk(h dist.Hash) (*dist.Chunk, error) {
	var data []byte
	err := j.db.QueryRow(`SELECT chunk FROM programs WHERE hash = ?`, h.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("program %s: %w", h.Short(), ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return dist.UnmarshalChunk(data)
}

// Runs returns how many runs of program h are recorded.
func (j *Journal) Runs(h dist.Hash) (int, error) {
	var n int
	err := j.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE hash = ?`, h.String()).Scan(&n)
	return n, err
}
