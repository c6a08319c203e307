// ABOUTME: Flat JSON file backend for the guestdesk document
// ABOUTME: Whole-document writes via temp file + rename; pretty-printed output

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// JSONFileBackend keeps the document in a single pretty-printed JSON file.
type JSONFileBackend struct {
	path   string
	logger *slog.Logger
}

// NewJSONFileBackend opens the document at path, creating parent directories
// and writing an empty document if the file does not exist yet.
func NewJSONFileBackend(path string) (*JSONFileBackend, error) {
	logger := slog.Default().With("component", "store", "backend", "json")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	b := &JSONFileBackend{path: path, logger: logger}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := b.Save(context.Background(), EmptyDocument()); err != nil {
			return nil, fmt.Errorf("creating initial document: %w", err)
		}
		logger.Info("created initial document", "path", path)
	} else if err != nil {
		return nil, fmt.Errorf("checking document: %w", err)
	}

	return b, nil
}

// Path returns the file backing the document.
func (b *JSONFileBackend) Path() string {
	return b.path
}

// Load reads and parses the whole file.
func (b *JSONFileBackend) Load(_ context.Context) (*Document, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	doc.normalize()
	return &doc, nil
}

// Save writes the document to a temp file next to the target and renames it
// into place, so a reader sees either the old or the new document.
func (b *JSONFileBackend) Save(_ context.Context, doc *Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".db-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing document: %w", err)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (b *JSONFileBackend) Close() error {
	return nil
}

// encodeDocument renders the on-disk form shared by every backend.
func encodeDocument(doc *Document) ([]byte, error) {
	doc.normalize()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return append(data, '\n'), nil
}
