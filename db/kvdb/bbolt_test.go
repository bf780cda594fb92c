package kvdb

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBoltDB(t *testing.T) *BoltDB {
	t.Helper()
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	db, err := New(slog.New(handler), filepath.Join(t.TempDir(), "nested", "kv.db"))
	require.NoError(t, err, "could not open bolt database")
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestSetGetDelete(t *testing.T) {
	assert := require.New(t)
	db := newTestBoltDB(t)

	assert.NoError(db.Set(SourcesBucket, "/docs/src", `{"records":3}`))
	value, err := db.Get(SourcesBucket, "/docs/src")
	assert.NoError(err)
	assert.Equal(`{"records":3}`, value)

	_, err = db.Get(PayloadsBucket, "/docs/src")
	assert.ErrorIs(err, ErrNotFound, "buckets must not share keys")
	var notFoundErr *NotFoundError
	assert.True(errors.As(err, &notFoundErr))
	assert.Equal(PayloadsBucket, notFoundErr.Bucket)

	assert.NoError(db.Delete(SourcesBucket, "/docs/src"))
	_, err = db.Get(SourcesBucket, "/docs/src")
	assert.ErrorIs(err, ErrNotFound)
}

func TestInvalidKeysAndBuckets(t *testing.T) {
	assert := require.New(t)
	db := newTestBoltDB(t)

	assert.ErrorIs(db.Set(RequestsBucket, "", "x"), ErrInvalidKey)
	_, err := db.Get(RequestsBucket, "")
	assert.ErrorIs(err, ErrInvalidKey)
	assert.ErrorIs(db.Delete(RequestsBucket, ""), ErrInvalidKey)

	assert.Error(db.Set("missing", "key", "x"))
	_, err = db.GetAllKeys("missing")
	assert.Error(err)
}

func TestGetAllKeysIsSorted(t *testing.T) {
	assert := require.New(t)
	db := newTestBoltDB(t)

	keys, err := db.GetAllKeys(SourcesBucket)
	assert.NoError(err)
	assert.Empty(keys)

	for _, key := range []string{"/b", "/c", "/a"} {
		assert.NoError(db.Set(SourcesBucket, key, "{}"))
	}
	keys, err = db.GetAllKeys(SourcesBucket)
	assert.NoError(err)
	assert.Equal([]string{"/a", "/b", "/c"}, keys)
}
