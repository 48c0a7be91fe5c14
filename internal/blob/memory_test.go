package blob

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()

	data := []byte("image bytes")

	ref, err := s.Put(ctx, "imgs_profile", data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "imgs_profile/"))

	got, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("image bytes"), got)

	// the store must not alias the caller's slice
	data[0] = 'X'
	got, err = s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("image bytes"), got)
}

func TestMemoryStore_PutUniqueRefs(t *testing.T) {
	s := NewMemoryStore()

	ref1, err := s.Put(ctx, "imgs_post", []byte("same"))
	require.NoError(t, err)

	ref2, err := s.Put(ctx, "imgs_post", []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, ref1, ref2)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(ctx, "imgs_post/unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()

	ref, err := s.Put(ctx, "imgs_post", []byte("data"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, ref))

	_, err = s.Get(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting an unknown reference is not an error
	require.NoError(t, s.Delete(ctx, ref))
}
