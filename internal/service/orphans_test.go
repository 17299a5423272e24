package service

import (
	"context"
	"testing"

	"github.com/bpparchive/archive/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	ctx := context.Background()
	repos := testRepos(store)
	bucket := newFakeBucket()

	stray, err := bucket.Upload(ctx, []byte{1}, "panels")
	require.NoError(t, err)
	require.NoError(t, repos.Orphans.Insert(ctx, store, stray, "upload aborted"))
	require.NoError(t, repos.Orphans.Insert(ctx, store, *s.drawing.ContentURL, "import rolled back"))
	require.NoError(t, repos.Orphans.Insert(ctx, store, "https://elsewhere.test/x.png", "upload aborted"))

	svc := NewOrphanService(store, repos, testCleaner(bucket), testLogger())
	res, err := svc.Sweep(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 2, res.Removed, "foreign urls count as gone")
	assert.Equal(t, 1, res.Referenced)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []string{stray}, bucket.deleted)
	assert.Empty(t, store.Orphans())
}

func TestSweep_ObjectAlreadyGone(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	repos := testRepos(store)
	bucket := newFakeBucket()

	url, err := bucket.Upload(ctx, []byte{1}, "panels")
	require.NoError(t, err)
	require.NoError(t, bucket.Delete(ctx, url))
	bucket.deleted = nil
	require.NoError(t, repos.Orphans.Insert(ctx, store, url, "upload aborted"))

	svc := NewOrphanService(store, repos, testCleaner(bucket), testLogger())
	res, err := svc.Sweep(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Missing)
	assert.Zero(t, res.Removed)
	assert.Empty(t, bucket.deleted, "no delete is issued for an object that is gone")
	assert.Empty(t, store.Orphans())
}

func TestSweep_FailedDeletesStayRecorded(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	repos := testRepos(store)
	bucket := newFakeBucket()

	url, err := bucket.Upload(ctx, []byte{1}, "panels")
	require.NoError(t, err)
	require.NoError(t, repos.Orphans.Insert(ctx, store, url, "upload aborted"))

	bucket.deleteErr = errUploadFailed
	svc := NewOrphanService(store, repos, testCleaner(bucket), testLogger())
	res, err := svc.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{url}, res.Failed)
	assert.Len(t, store.Orphans(), 1)

	bucket.deleteErr = nil
	res, err = svc.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Empty(t, store.Orphans())
}
