// ABOUTME: SQLite backend for the guestdesk document using modernc.org/sqlite
// ABOUTME: Stores the whole JSON document in a single row; saves are one upsert

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// documentRowID is the only row in the documents table.
const documentRowID = 1

// SQLiteBackend keeps the document in an embedded SQLite database file.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteBackend opens (or creates) the database at path. ":memory:" is
// accepted for tests. The empty document is inserted when none exists.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	logger := slog.Default().With("component", "store", "backend", "sqlite")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and matches SQLite's single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	b := &SQLiteBackend{db: db, logger: logger}

	if err := b.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if _, err := b.Load(context.Background()); errors.Is(err, errNoDocument) {
		if err := b.Save(context.Background(), EmptyDocument()); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating initial document: %w", err)
		}
		logger.Info("created initial document", "path", path)
	}

	logger.Info("SQLite backend initialized", "path", path)
	return b, nil
}

var errNoDocument = errors.New("document not found")

// createSchema creates the documents table if it doesn't exist
func (b *SQLiteBackend) createSchema() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			body       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	return err
}

// Load reads the document row and parses it.
func (b *SQLiteBackend) Load(ctx context.Context) (*Document, error) {
	var body string
	err := b.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE id = ?", documentRowID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	doc.normalize()
	return &doc, nil
}

// Save replaces the document row in a single statement.
func (b *SQLiteBackend) Save(ctx context.Context, doc *Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO documents (id, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, documentRowID, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
