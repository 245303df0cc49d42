package mongodb_test

import (
	"context"
	"testing"
	"time"

	"github.com/contrastkit/contrastkit/cache"
	"github.com/contrastkit/contrastkit/mongodb"
	"github.com/contrastkit/contrastkit/mongodb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_PutGetDelete(t *testing.T) {
	db := testutil.SetupTestMongoDB(t, "kv_store")
	ctx := context.Background()

	store := mongodb.NewKVStore(db, "")
	require.NoError(t, store.EnsureIndexes(ctx))
	require.NoError(t, store.Ping(ctx))

	_, err := store.Get(ctx, "auth-data:abc")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, store.Put(ctx, "auth-data:abc", []byte(`{"siteId":"abc"}`), 0))
	require.NoError(t, store.Put(ctx, "auth-data:abc", []byte(`{"siteId":"abc","siteName":"Foo"}`), 0))

	got, err := store.Get(ctx, "auth-data:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"siteId":"abc","siteName":"Foo"}`, string(got))

	require.NoError(t, store.Delete(ctx, "auth-data:abc"))
	_, err = store.Get(ctx, "auth-data:abc")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestKVStore_ExpiredIsMissing(t *testing.T) {
	db := testutil.SetupTestMongoDB(t, "kv_store_ttl")
	ctx := context.Background()

	store := mongodb.NewKVStore(db, "kv")
	require.NoError(t, store.Put(ctx, "domain:foo.webflow.io", []byte(`{}`), 100*time.Millisecond))

	_, err := store.Get(ctx, "domain:foo.webflow.io")
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	_, err = store.Get(ctx, "domain:foo.webflow.io")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}
