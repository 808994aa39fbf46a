package bench

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

// Record is a stored result. Returned values are kept in their printed form.
type Record struct {
	ID         uuid.UUID
	Name       string
	Iterations int
	Returns    string
	Start      time.Time
	Elapsed    time.Duration
}

// Store keeps benchmark results in a SQLite database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens (creating if needed) the database at path. ":memory:" works too.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a second connection to :memory: would be a different database
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		iterations INTEGER NOT NULL,
		returns TEXT NOT NULL,
		start INTEGER NOT NULL,
		elapsed INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a result.
func (s *Store) Save(r *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO runs (id, name, iterations, returns, start, elapsed) VALUES (?, ?, ?, ?, ?, ?)",
		r.ID.String(), r.Name, r.Iterations, r.ReturnString(), r.Start.UnixNano(), int64(r.Elapsed),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

func scanRecord(row interface{ Scan(...any) error }) (rec Record, err error) {
	var id string
	var start, elapsed int64
	if err = row.Scan(&id, &rec.Name, &rec.Iterations, &rec.Returns, &start, &elapsed); err != nil {
		return
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return rec, fmt.Errorf("bad run id %q: %w", id, err)
	}
	rec.Start = time.Unix(0, start)
	rec.Elapsed = time.Duration(elapsed)
	return
}

// Get loads a single run by ID.
func (s *Store) Get(id uuid.UUID) (Record, error) {
	row := s.db.QueryRow("SELECT id, name, iterations, returns, start, elapsed FROM runs WHERE id = ?", id.String())

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRunNotFound
	} else if err != nil {
		return Record{}, fmt.Errorf("querying run: %w", err)
	}
	return rec, nil
}

// History returns up to limit runs of a benchmark, newest first.
func (s *Store) History(name string, limit int) (recs []Record, err error) {
	rows, err := s.db.Query(
		"SELECT id, name, iterations, returns, start, elapsed FROM runs WHERE name = ? ORDER BY start DESC LIMIT ?",
		name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
