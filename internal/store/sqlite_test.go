package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "guestdesk.db")

	b, err := NewSQLiteBackend(dbPath)
	require.NoError(t, err)
	defer b.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file was not created")

	doc, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EmptyDocument(), doc)
}

func TestSQLiteBackend_SaveAndLoad(t *testing.T) {
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()

	doc := EmptyDocument()
	doc.Visitors = 12
	doc.Guestbook = append(doc.Guestbook, GuestbookEntry{Name: "bob", Message: "hi", Time: "Mar 5, 2024"})
	require.NoError(t, b.Save(ctx, doc))

	doc.Visitors = 13
	require.NoError(t, b.Save(ctx, doc))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(13), got.Visitors)
	require.Len(t, got.Guestbook, 1)
	assert.Equal(t, "bob", got.Guestbook[0].Name)
	assert.Empty(t, got.Shoutbox)
}

func TestSQLiteBackend_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "guestdesk.db")
	ctx := context.Background()

	b, err := NewSQLiteBackend(dbPath)
	require.NoError(t, err)
	svc := New(b)
	_, err = svc.PostShout(ctx, "ann", "persisted")
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	b, err = NewSQLiteBackend(dbPath)
	require.NoError(t, err)
	defer b.Close()

	doc, err := b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Shoutbox, 1)
	assert.Equal(t, "persisted", doc.Shoutbox[0].Message)
}
