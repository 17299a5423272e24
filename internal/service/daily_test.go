package service

import (
	"context"
	"testing"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDailyService(t *testing.T, store *memstore.Store, excluded ...string) *DailyService {
	t.Helper()
	svc, err := NewDailyService(store, testRepos(store), excluded, 8, testLogger())
	require.NoError(t, err)
	return svc
}

func TestDailySeed(t *testing.T) {
	tests := []struct {
		date time.Time
		want float64
	}{
		{time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC), 0.260117},
		{time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), 0.251231},
		{time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC), 0.000101},
	}
	for _, tt := range tests {
		t.Run(tt.date.Format("2006-01-02"), func(t *testing.T) {
			got := DailySeed(tt.date)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 1.0)
		})
	}
}

func TestDaily_SameDateSamePanel(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	svc := newDailyService(t, store)
	ctx := context.Background()
	date := time.Date(2026, 1, 17, 15, 30, 0, 0, time.UTC)

	first, err := svc.ForDate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, s.drawing.ID, first.PageID)
	assert.Equal(t, s.book.ID, first.BookID)
	assert.Equal(t, *s.drawing.ContentURL, first.ImageURL)
	assert.Equal(t, time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC), first.Date)

	// A second service has a cold cache and must read the memo row.
	again, err := newDailyService(t, store).ForDate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, first.PageID, again.PageID)
	assert.Equal(t, 1, store.DailyCount())

	events := store.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDailyPanelPinned, events[0].EventType)
}

func TestDaily_PassesSeedAndExclusions(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	var gotSeed float64
	var gotExcluded []string
	store.PickHook = func(seed float64, excluded []string) *domain.Page {
		gotSeed, gotExcluded = seed, excluded
		return &s.drawing
	}

	svc := newDailyService(t, store, "Grumpy Cat")
	date := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	_, err := svc.ForDate(context.Background(), date)
	require.NoError(t, err)

	assert.Equal(t, DailySeed(date), gotSeed)
	assert.Equal(t, []string{"Grumpy Cat"}, gotExcluded)
}

func TestDaily_ConcurrentWriterWins(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	ctx := context.Background()
	repos := testRepos(store)
	date := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)

	// Another replica pins a different page between our lookup and insert.
	other := domain.NewImagePage(s.book.ID, s.drawing.AliasID, 3, testBucketHost+"panels/other.png")
	require.NoError(t, repos.Pages.Create(ctx, store, &other))
	store.PickHook = func(float64, []string) *domain.Page {
		store.PinDailyCommitted(domain.DailyChallenge{Date: date, PageID: other.ID})
		return &s.drawing
	}

	panel, err := newDailyService(t, store).ForDate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, other.ID, panel.PageID, "the committed row wins")
	assert.Empty(t, store.Outbox())
}

func TestDaily_NoEligiblePage(t *testing.T) {
	store := memstore.New()
	_, err := newDailyService(t, store).ForDate(context.Background(), time.Now())
	requireAppError(t, err, "NOT_FOUND", 404)
	assert.Zero(t, store.DailyCount())
}

func TestDaily_ExcludedCharacterSkipsPage(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	ctx := context.Background()
	repos := testRepos(store)

	grumpy := domain.Character{Name: "Grumpy Cat"}
	require.NoError(t, repos.Characters.Create(ctx, store, &grumpy))
	_, err := repos.Characters.Tag(ctx, store, s.drawing.ID, grumpy.ID)
	require.NoError(t, err)

	_, err = newDailyService(t, store, "Grumpy Cat").ForDate(ctx, time.Now())
	requireAppError(t, err, "NOT_FOUND", 404)
}

func TestDaily_PinnedPageDeleted(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	ctx := context.Background()
	svc := newDailyService(t, store)
	date := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)

	_, err := svc.ForDate(ctx, date)
	require.NoError(t, err)
	_, err = testRepos(store).Pages.Delete(ctx, store, s.drawing.ID)
	require.NoError(t, err)

	_, err = svc.ForDate(ctx, date)
	requireAppError(t, err, "NOT_FOUND", 404)
}

func TestDaily_Guess(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	svc := newDailyService(t, store)
	ctx := context.Background()
	date := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)

	wrong, err := svc.Guess(ctx, date, s.bob.ID)
	require.NoError(t, err)
	assert.False(t, wrong.Correct)
	assert.Equal(t, s.alice.ID, wrong.Author.ID)
	assert.Equal(t, "Alice", wrong.Alias.Name)

	right, err := svc.Guess(ctx, date, s.alice.ID)
	require.NoError(t, err)
	assert.True(t, right.Correct)
	assert.Equal(t, wrong.PageID, right.PageID)
}

func TestDaily_TodayIsUTCMidnight(t *testing.T) {
	svc := newDailyService(t, memstore.New())
	svc.now = func() time.Time {
		return time.Date(2026, 1, 17, 23, 59, 0, 0, time.FixedZone("PST", -8*3600))
	}
	assert.Equal(t, time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC), svc.Today())
}
