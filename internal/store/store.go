package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
)

// Status is the processing state of a sentence unit.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Unit is one sentence tracked through the pipeline.
// Perplexity is only meaningful when Status is StatusDone.
type Unit struct {
	ID         string
	Text       string
	Position   int
	Length     int
	Status     Status
	Perplexity float64
	ErrorMsg   string
	UpdatedAt  time.Time
}

// Unbounded reports whether this unit's perplexity is undefined
// (the scoring attempt failed or produced no scoreable tokens).
func (u Unit) Unbounded() bool {
	return u.Status == StatusFailed
}

// Outcome is the result of one scoring attempt, handed to CommitBatch.
type Outcome struct {
	UnitID     string
	Status     Status
	Perplexity float64
	Reason     string
}

// Done builds a successful outcome carrying the computed perplexity.
func Done(unitID string, perplexity float64) Outcome {
	return Outcome{UnitID: unitID, Status: StatusDone, Perplexity: perplexity}
}

// Failed builds a failed outcome. No perplexity is recorded for it.
func Failed(unitID, reason string) Outcome {
	return Outcome{UnitID: unitID, Status: StatusFailed, Reason: reason}
}

// Store owns the single-file SQLite database holding the sentence units.
// All access to units goes through its methods; nothing else mutates rows.
//
// A writable Store holds an exclusive lockfile next to the database for its
// whole lifetime. A second writer fails fast with ErrContention instead of
// corrupting state. Read-only handles skip the lock and only ever observe
// fully committed batches.
type Store struct {
	db       *sql.DB
	path     string
	lockPath string
	readOnly bool
}

// UnitID derives the stable identifier of a sentence: the SHA-256 of its
// whitespace-normalized text. Identical sentences always map to the same
// unit, across runs and across inputs.
func UnitID(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Open opens (creating if needed) the store at path for writing.
// Returns ErrContention if another writer already holds the lock.
func Open(path string) (*Store, error) {
	lockPath := path + ".lock"

	// 1. Acquire the single-writer lock. O_EXCL makes creation atomic.
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: lockfile %s exists (remove it manually if the previous run was killed)", ErrContention, lockPath)
		}
		return nil, fmt.Errorf("failed to create lockfile: %w", err)
	}
	fmt.Fprintf(lock, "%d\n", os.Getpid())
	lock.Close()

	// 2. Open SQLite. WAL keeps readers concurrent with our commits.
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 3. Run Schema
	if _, err := db.Exec(SchemaSQL); err != nil {
		db.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, path: path, lockPath: lockPath}

	// 4. Check persisted invariants before touching anything.
	if err := s.Verify(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// OpenReadOnly opens an existing store for querying only.
// Returns ErrNotFound if the database file does not exist.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: path, readOnly: true}

	if err := s.Verify(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database handle and, for writers, the lockfile.
func (s *Store) Close() error {
	err := s.db.Close()
	if !s.readOnly {
		os.Remove(s.lockPath)
	}
	return err
}

// Register inserts text as a pending unit and returns its id. If a unit
// with the same content hash already exists, the existing row is left
// untouched; registering is idempotent across runs of the same input.
func (s *Store) Register(text string, position int) (string, error) {
	id := UnitID(text)
	length := utf8.RuneCountInString(text)

	_, err := s.db.Exec(`
		INSERT INTO sentences (id, text, position, length, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, text, position, length, StatusPending)
	if err != nil {
		return "", fmt.Errorf("failed to register sentence at position %d: %w", position, err)
	}

	return id, nil
}

// PendingBatch returns up to limit pending units in source order. It does
// not mutate status: a claim is purely a read, so a crashed run leaves its
// claimed units claimable by the next run.
func (s *Store) PendingBatch(limit int) ([]Unit, error) {
	rows, err := s.db.Query(`
		SELECT id, text, position, length, status, perplexity, error_msg, updated_at
		FROM sentences
		WHERE status = ?
		ORDER BY position
		LIMIT ?`,
		StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending units: %w", err)
	}
	defer rows.Close()

	return scanUnits(rows)
}

// CommitBatch applies every outcome in a single transaction. Either the
// whole batch becomes durable or none of it does; this is the pipeline's
// crash boundary.
func (s *Store) CommitBatch(outcomes []Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	for _, o := range outcomes {
		if err := validateOutcome(o); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE sentences
		SET status = ?, perplexity = ?, error_msg = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare commit: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		var perplexity any
		var reason any
		if o.Status == StatusDone {
			perplexity = o.Perplexity
		}
		if o.Reason != "" {
			reason = o.Reason
		}

		res, err := stmt.Exec(o.Status, perplexity, reason, o.UnitID, StatusPending)
		if err != nil {
			return fmt.Errorf("failed to commit unit %s: %w", o.UnitID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to commit unit %s: %w", o.UnitID, err)
		}
		if affected != 1 {
			// A unit gets resolved exactly once. Committing an outcome for
			// a unit that is not pending means the store and the processor
			// disagree about reality.
			return fmt.Errorf("%w: unit %s is not pending at commit time", ErrCorrupt, o.UnitID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

func validateOutcome(o Outcome) error {
	switch o.Status {
	case StatusDone:
		if math.IsNaN(o.Perplexity) || math.IsInf(o.Perplexity, 0) {
			return fmt.Errorf("outcome for unit %s: non-finite perplexity %v", o.UnitID, o.Perplexity)
		}
	case StatusFailed:
		if o.Perplexity != 0 {
			return fmt.Errorf("outcome for unit %s: failed outcome carries a perplexity", o.UnitID)
		}
	default:
		return fmt.Errorf("outcome for unit %s: invalid status %q", o.UnitID, o.Status)
	}
	return nil
}

// Stats summarizes the store's progress and perplexity distribution.
type Stats struct {
	Total   int
	Done    int
	Pending int
	Failed  int

	// Over done units only. Valid when Done > 0.
	MeanPerplexity float64
	MinPerplexity  float64
	MaxPerplexity  float64
}

func (s *Store) Stats() (Stats, error) {
	var st Stats

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(CASE WHEN status = 'done' THEN 1 END),
		       COUNT(CASE WHEN status = 'pending' THEN 1 END),
		       COUNT(CASE WHEN status = 'failed' THEN 1 END)
		FROM sentences`).
		Scan(&st.Total, &st.Done, &st.Pending, &st.Failed)
	if err != nil {
		return st, fmt.Errorf("failed to read stats: %w", err)
	}

	if st.Done > 0 {
		err = s.db.QueryRow(`
			SELECT AVG(perplexity), MIN(perplexity), MAX(perplexity)
			FROM sentences
			WHERE status = 'done'`).
			Scan(&st.MeanPerplexity, &st.MinPerplexity, &st.MaxPerplexity)
		if err != nil {
			return st, fmt.Errorf("failed to read perplexity stats: %w", err)
		}
	}

	return st, nil
}

// Verify checks the persisted invariant: perplexity is present if and only
// if the unit is done. A violation is fatal corruption, never repaired.
func (s *Store) Verify() error {
	var violations int
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM sentences
		WHERE (status = 'done' AND perplexity IS NULL)
		   OR (status != 'done' AND perplexity IS NOT NULL)`).
		Scan(&violations)
	if err != nil {
		return fmt.Errorf("failed to verify store: %w", err)
	}

	if violations > 0 {
		return fmt.Errorf("%w: %d unit(s) violate the perplexity/status invariant", ErrCorrupt, violations)
	}

	return nil
}

func scanUnits(rows *sql.Rows) ([]Unit, error) {
	var units []Unit
	for rows.Next() {
		var u Unit
		var perplexity sql.NullFloat64
		var errorMsg sql.NullString

		if err := rows.Scan(&u.ID, &u.Text, &u.Position, &u.Length, &u.Status, &perplexity, &errorMsg, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}

		u.Perplexity = perplexity.Float64
		u.ErrorMsg = errorMsg.String
		units = append(units, u)
	}

	return units, rows.Err()
}
