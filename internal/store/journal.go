package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is an append-only record of successful script writes made through the server.
// It is an audit trail: nothing replays it back onto disk.
type Journal struct {
	db *sql.DB
}

type JournalEntry struct {
	ID         int64     `json:"id" yaml:"id"`
	Path       string    `json:"path" yaml:"path"`
	Bytes      int       `json:"bytes" yaml:"bytes"`
	SHA256     string    `json:"sha256" yaml:"sha256"`
	RemoteAddr string    `json:"remoteAddr,omitempty" yaml:"remoteAddr,omitempty"`
	SavedAt    time.Time `json:"savedAt" yaml:"savedAt"`
}

// DefaultJournalPath is where `scriptview serve` keeps its journal unless told otherwise.
func DefaultJournalPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "journal.sqlite"), nil
}

func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal: missing path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL: the server writes while `scriptview journal` reads from another process.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			sha256 TEXT NOT NULL,
			remote_addr TEXT NOT NULL DEFAULT '',
			saved_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_path ON saves(path, saved_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends an entry for content written to path.
func (j *Journal) Record(ctx context.Context, path string, content []byte, remoteAddr string, at time.Time) (JournalEntry, error) {
	if j == nil || j.db == nil {
		return JournalEntry{}, errors.New("journal: not open")
	}
	sum := sha256.Sum256(content)
	e := JournalEntry{
		Path:       path,
		Bytes:      len(content),
		SHA256:     hex.EncodeToString(sum[:]),
		RemoteAddr: strings.TrimSpace(remoteAddr),
		SavedAt:    at.UTC().Truncate(time.Millisecond),
	}
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO saves(path, bytes, sha256, remote_addr, saved_at_unixms) VALUES (?, ?, ?, ?, ?)`,
		e.Path, e.Bytes, e.SHA256, e.RemoteAddr, e.SavedAt.UnixMilli(),
	)
	if err != nil {
		return JournalEntry{}, err
	}
	e.ID, _ = res.LastInsertId()
	return e, nil
}

// Recent returns the newest entries first. An empty path matches every script.
func (j *Journal) Recent(ctx context.Context, path string, limit int) ([]JournalEntry, error) {
	if j == nil || j.db == nil {
		return nil, errors.New("journal: not open")
	}
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, path, bytes, sha256, remote_addr, saved_at_unixms FROM saves`
	args := []any{}
	if strings.TrimSpace(path) != "" {
		q += ` WHERE path = ?`
		args = append(args, strings.TrimSpace(path))
	}
	q += ` ORDER BY saved_at_unixms DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		var ms int64
		if err := rows.Scan(&e.ID, &e.Path, &e.Bytes, &e.SHA256, &e.RemoteAddr, &ms); err != nil {
			return nil, err
		}
		e.SavedAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
