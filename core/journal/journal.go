// Package journal records completed migrations in a SQLite database so
// batch runs and API calls can be audited afterwards.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
	"github.com/FocuswithJustin/legacyfix/core/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// timeFormat has fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Digest returns the hex BLAKE3 hash of a document's SNBT form.
func Digest(doc *nbt.Document) string {
	sum := blake3.Sum256([]byte(doc.String()))
	return hex.EncodeToString(sum[:])
}

// Entry is one recorded migration.
type Entry struct {
	ID            string        `json:"id"`
	Kind          string        `json:"kind"`
	SourceVersion int           `json:"source_version"`
	TargetVersion int           `json:"target_version"`
	InputDigest   string        `json:"input_digest"`
	OutputDigest  string        `json:"output_digest,omitempty"`
	Changed       bool          `json:"changed"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
	Path          string        `json:"path,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Kind       string
	OnlyFailed bool
	Since      time.Time
	// Limit caps the number of entries; 0 means 100.
	Limit int
}

// Journal is a migration log backed by SQLite. It is safe for concurrent
// use.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open journal", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.NewIO("create journal schema", path, err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores e, assigning an ID and timestamp when absent, and returns
// the stored entry.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Kind == "" {
		return e, errors.NewValidation("kind", "journal entry needs a kind")
	}
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return e, errors.Wrap(err, "generate journal id")
		}
		e.ID = id.String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO migrations (id, kind, source_version, target_version, input_digest,
			output_digest, changed, duration_ns, error, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.SourceVersion, e.TargetVersion, e.InputDigest,
		e.OutputDigest, e.Changed, int64(e.Duration), e.Error, e.Path,
		e.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return e, errors.NewIO("record migration", e.ID, err)
	}
	return e, nil
}

const selectColumns = `SELECT id, kind, source_version, target_version, input_digest,
	output_digest, changed, duration_ns, error, path, created_at FROM migrations`

// Get returns the entry with the given id.
func (j *Journal) Get(ctx context.Context, id string) (Entry, error) {
	row := j.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, errors.NewNotFound("migration", id)
	}
	if err != nil {
		return Entry{}, errors.NewIO("get migration", id, err)
	}
	return e, nil
}

// List returns entries matching f, newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.OnlyFailed {
		where = append(where, "error <> ''")
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeFormat))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewIO("list migrations", "", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.NewIO("scan migration", "", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("list migrations", "", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e        Entry
		duration int64
		created  string
	)
	err := s.Scan(&e.ID, &e.Kind, &e.SourceVersion, &e.TargetVersion, &e.InputDigest,
		&e.OutputDigest, &e.Changed, &duration, &e.Error, &e.Path, &created)
	if err != nil {
		return Entry{}, err
	}
	e.Duration = time.Duration(duration)
	e.CreatedAt, err = time.Parse(timeFormat, created)
	return e, err
}
