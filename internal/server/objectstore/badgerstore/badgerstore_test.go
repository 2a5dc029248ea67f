package badgerstore

import (
	"context"
	"testing"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_InMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "")

	loc, err := s.Put(ctx, "documents/x", []byte{1, 2, 3})
	require.NoError(t, err)

	got, err := s.Get(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, s.Delete(ctx, loc))
	_, err = s.Get(ctx, loc)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStore_PersistsOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Put(ctx, "documents/y", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = openStore(t, dir)
	got, err := s.Get(ctx, "documents/y")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}
