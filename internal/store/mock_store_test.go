package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_CopiesDocuments(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	doc := EmptyDocument()
	doc.Shoutbox = append(doc.Shoutbox, ShoutMessage{Name: "ann"})
	require.NoError(t, b.Save(ctx, doc))

	doc.Shoutbox[0].Name = "mutated"

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ann", got.Shoutbox[0].Name)
}

func TestMemoryBackend_InjectedErrors(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	boom := errors.New("boom")

	b.SetLoadError(boom)
	_, err := b.Load(ctx)
	assert.ErrorIs(t, err, boom)

	b.SetSaveError(boom)
	assert.ErrorIs(t, b.Save(ctx, EmptyDocument()), boom)
	assert.Equal(t, 0, b.Saves())

	b.Drop()
	b.SetLoadError(nil)
	_, err = b.Load(ctx)
	assert.Error(t, err)
}
