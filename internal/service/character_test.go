package service

import (
	"context"
	"testing"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag_FirstImageBecomesCharacterImage(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	ctx := context.Background()
	repos := testRepos(store)
	svc := NewCharacterService(store, repos, testLogger())

	grumpy := domain.Character{Name: "Grumpy Cat"}
	require.NoError(t, repos.Characters.Create(ctx, store, &grumpy))

	res, err := svc.Tag(ctx, s.drawing.ID, grumpy.ID)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.True(t, res.ImageAdopted)
	require.NotNil(t, res.Character.ImageURL)
	assert.Equal(t, *s.drawing.ContentURL, *res.Character.ImageURL)

	// A second drawing does not replace the adopted image.
	second := domain.NewImagePage(s.book.ID, s.drawing.AliasID, 3, testBucketHost+"panels/second.png")
	require.NoError(t, repos.Pages.Create(ctx, store, &second))
	res, err = svc.Tag(ctx, second.ID, grumpy.ID)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.False(t, res.ImageAdopted)
	assert.Equal(t, *s.drawing.ContentURL, *res.Character.ImageURL)

	events := store.Outbox()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventCharacterTagged, events[0].EventType)
}

func TestTag_CaptionLeavesImageAlone(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	ctx := context.Background()
	repos := testRepos(store)
	svc := NewCharacterService(store, repos, testLogger())

	cat := domain.Character{Name: "Pizza Cat"}
	require.NoError(t, repos.Characters.Create(ctx, store, &cat))

	res, err := svc.Tag(ctx, s.caption.ID, cat.ID)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.False(t, res.ImageAdopted)
	assert.Nil(t, res.Character.ImageURL)
}

func TestTag_Idempotent(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	ctx := context.Background()
	repos := testRepos(store)
	svc := NewCharacterService(store, repos, testLogger())

	cat := domain.Character{Name: "Pizza Cat"}
	require.NoError(t, repos.Characters.Create(ctx, store, &cat))

	_, err := svc.Tag(ctx, s.caption.ID, cat.ID)
	require.NoError(t, err)
	res, err := svc.Tag(ctx, s.caption.ID, cat.ID)
	require.NoError(t, err)
	assert.False(t, res.Added)
	assert.Len(t, store.Outbox(), 1, "re-tagging publishes nothing")
}

func TestTag_MissingRecords(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	svc := NewCharacterService(store, testRepos(store), testLogger())

	_, err := svc.Tag(context.Background(), 9999, 1)
	requireAppError(t, err, "NOT_FOUND", 404)

	_, err = svc.Tag(context.Background(), s.drawing.ID, 9999)
	requireAppError(t, err, "NOT_FOUND", 404)
}

func TestUntag(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	ctx := context.Background()
	repos := testRepos(store)
	svc := NewCharacterService(store, repos, testLogger())

	cat := domain.Character{Name: "Grumpy Cat"}
	require.NoError(t, repos.Characters.Create(ctx, store, &cat))
	_, err := svc.Tag(ctx, s.drawing.ID, cat.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Untag(ctx, s.drawing.ID, cat.ID))
	requireAppError(t, svc.Untag(ctx, s.drawing.ID, cat.ID), "NOT_FOUND", 404)

	kept, err := repos.Characters.FindByID(ctx, store, cat.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept.ImageURL, "untag keeps the adopted image")
}
