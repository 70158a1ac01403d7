package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-close-backend/internal/apperr"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var missing testDoc
	err := s.Get(ctx, CollectionRuns, "nope", &missing)
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, s.Put(ctx, CollectionRuns, "a", testDoc{Name: "first", Count: 1}))
	require.NoError(t, s.Put(ctx, CollectionRuns, "b", testDoc{Name: "second", Count: 2}))
	// Overwrite replaces the document.
	require.NoError(t, s.Put(ctx, CollectionRuns, "a", testDoc{Name: "first", Count: 3}))

	var got testDoc
	require.NoError(t, s.Get(ctx, CollectionRuns, "a", &got))
	assert.Equal(t, 3, got.Count)

	docs, err := s.List(ctx, CollectionRuns)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	// Collections are isolated.
	docs, err = s.List(ctx, CollectionDecisions)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStoreCopiesOnRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, CollectionRuns, "a", testDoc{Name: "x"}))

	docs, err := s.List(ctx, CollectionRuns)
	require.NoError(t, err)
	docs["a"][0] = '!'

	var got testDoc
	require.NoError(t, s.Get(ctx, CollectionRuns, "a", &got))
	assert.Equal(t, "x", got.Name)
}
