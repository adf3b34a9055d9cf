package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const journalFileName = "journal.sqlite"

// JournalEntry is one state transition of a review command.
type JournalEntry struct {
	Seq   int64     `json:"seq"`
	ID    string    `json:"id"`
	Kind  string    `json:"kind"`
	Keys  []string  `json:"keys,omitempty"`
	State string    `json:"state"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// Journal is an append-only log of command transitions.
type Journal struct {
	db *sql.DB
}

func (s Store) OpenJournal(ctx context.Context) (*Journal, error) {
	if !s.enabled() {
		return nil, errors.New("journal: missing store dir")
	}
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.path(journalFileName))
	if err != nil {
		return nil, err
	}
	// WAL lets a CLI command append while the TUI holds the journal open.
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
	if err := migrateJournal(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func migrateJournal(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS commands (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			command_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			keys_json TEXT NOT NULL,
			state TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_id ON commands(command_id, seq);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) Record(ctx context.Context, e JournalEntry) error {
	if j == nil || j.db == nil {
		return nil
	}
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.Kind) == "" || strings.TrimSpace(e.State) == "" {
		return errors.New("journal: entry requires id, kind and state")
	}
	keys := e.Keys
	if keys == nil {
		keys = []string{}
	}
	kb, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO commands(command_id, kind, keys_json, state, error, at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, string(kb), e.State, e.Error, at.UTC().UnixMilli(),
	)
	return err
}

// List returns the newest entries first. limit <= 0 means no limit.
func (j *Journal) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	q := `SELECT seq, command_id, kind, keys_json, state, error, at_unixms FROM commands ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// History returns the transitions of one command in order.
func (j *Journal) History(ctx context.Context, commandID string) ([]JournalEntry, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, command_id, kind, keys_json, state, error, at_unixms FROM commands WHERE command_id = ? ORDER BY seq ASC`,
		commandID,
	)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]JournalEntry, error) {
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e      JournalEntry
			keysJS string
			atMS   int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Kind, &keysJS, &e.State, &e.Error, &atMS); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keysJS), &e.Keys); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(atMS).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
