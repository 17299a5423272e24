//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/infra"
	"github.com/bpparchive/archive/internal/repository"
	"github.com/bpparchive/archive/internal/testutil/pgtest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	user    domain.User
	alias   domain.Alias
	game    domain.Game
	book    domain.Book
	caption domain.Page
	drawing domain.Page
}

func seed(t *testing.T, pool *pgxpool.Pool) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture

	f.user = domain.User{TrueName: "Alice_Artist"}
	require.NoError(t, repository.NewUserRepository().Create(ctx, pool, &f.user))
	f.alias = domain.Alias{Name: "Alice", UserID: &f.user.ID}
	require.NoError(t, repository.NewAliasRepository().Create(ctx, pool, &f.alias))

	f.game = domain.Game{Date: time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repository.NewGameRepository().Create(ctx, pool, &f.game))
	f.book = domain.Book{GameID: f.game.ID}
	require.NoError(t, repository.NewBookRepository().Create(ctx, pool, &f.book))

	pages := repository.NewPageRepository()
	f.caption = domain.NewTextPage(f.book.ID, &f.alias.ID, 1, "A cat eating pizza")
	require.NoError(t, pages.Create(ctx, pool, &f.caption))
	f.drawing = domain.NewImagePage(f.book.ID, &f.alias.ID, 2, "https://f005.backblazeb2.com/file/bpp/panels/a.png")
	require.NoError(t, pages.Create(ctx, pool, &f.drawing))
	return f
}

func TestUsers_UniqueTrueName(t *testing.T) {
	pool := pgtest.Pool(t)
	seed(t, pool)

	dup := domain.User{TrueName: "Alice_Artist"}
	err := repository.NewUserRepository().Create(context.Background(), pool, &dup)
	assert.True(t, infra.IsUniqueViolation(err))
}

func TestUsers_DeleteDetachesAliases(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Pool(t)
	f := seed(t, pool)

	deleted, err := repository.NewUserRepository().Delete(ctx, pool, f.user.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	alias, err := repository.NewAliasRepository().FindByID(ctx, pool, f.alias.ID)
	require.NoError(t, err)
	require.NotNil(t, alias)
	assert.Nil(t, alias.UserID)

	page, err := repository.NewPageRepository().FindByID(ctx, pool, f.drawing.ID)
	require.NoError(t, err)
	assert.NotNil(t, page, "pages survive author deletion")
}

func TestPages_Constraints(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Pool(t)
	f := seed(t, pool)
	pages := repository.NewPageRepository()

	dupSeq := domain.NewTextPage(f.book.ID, nil, 1, "again")
	assert.True(t, infra.IsUniqueViolation(pages.Create(ctx, pool, &dupSeq)))

	text := "caption"
	mixed := domain.Page{BookID: f.book.ID, Sequence: 3, Type: domain.PageImage, ContentText: &text}
	assert.True(t, infra.IsCheckViolation(pages.Create(ctx, pool, &mixed)))

	orphan := domain.NewTextPage(999999, nil, 1, "nowhere")
	assert.True(t, infra.IsForeignKeyViolation(pages.Create(ctx, pool, &orphan)))
}

func TestGames_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Pool(t)
	f := seed(t, pool)

	urls, err := repository.NewPageRepository().ImageURLsByGame(ctx, pool, f.game.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{*f.drawing.ContentURL}, urls)

	deleted, err := repository.NewGameRepository().Delete(ctx, pool, f.game.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	book, err := repository.NewBookRepository().FindByID(ctx, pool, f.book.ID)
	require.NoError(t, err)
	assert.Nil(t, book)
	n, err := repository.NewPageRepository().Count(ctx, pool)
	require.NoError(t, err)
	assert.Zero(t, n)

	deleted, err = repository.NewGameRepository().Delete(ctx, pool, f.game.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestBooks_SearchByOpeningText(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Pool(t)
	f := seed(t, pool)
	books := repository.NewBookRepository()

	found, err := books.SearchByOpeningText(ctx, pool, "PIZZA", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, f.book.ID, found[0].ID)

	found, err = books.SearchByOpeningText(ctx, pool, "50%_off", 10)
	require.NoError(t, err)
	assert.Empty(t, found, "wildcards are matched literally")
}

func TestCharacters_TagAndBackfill(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Pool(t)
	f := seed(t, pool)
	chars := repository.NewCharacterRepository()

	cat := domain.Character{Name: "Grumpy Cat"}
	require.NoError(t, chars.Create(ctx, pool, &cat))

	added, err := chars.Tag(ctx, pool, f.drawing.ID, cat.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = chars.Tag(ctx, pool, f.drawing.ID, cat.ID)
	require.NoError(t, err)
	assert.False(t, added)

	set, err := chars.BackfillImage(ctx, pool, cat.ID, *f.drawing.ContentURL)
	require.NoError(t, err)
	assert.True(t, set)
	set, err = chars.BackfillImage(ctx, pool, cat.ID, "https://example.org/other.png")
	require.NoError(t, err)
	assert.False(t, set, "existing image is never replaced")

	tagged, err := repository.NewPageRepository().ListByCharacter(ctx, pool, cat.ID)
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, f.drawing.ID, tagged[0].ID)
}

func TestDaily_PickEligibleIsDeterministic(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Pool(t)
	f := seed(t, pool)
	pages := repository.NewPageRepository()
	for i := 3; i <= 8; i++ {
		p := domain.NewImagePage(f.book.ID, &f.alias.ID, i, "https://f005.backblazeb2.com/file/bpp/panels/x"+string(rune('0'+i))+".png")
		require.NoError(t, pages.Create(ctx, pool, &p))
	}
	daily := repository.NewDailyChallengeRepository()

	pick := func(seed float64, excluded []string) *domain.Page {
		tx, err := pool.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)
		p, err := daily.PickEligible(ctx, tx, seed, excluded)
		require.NoError(t, err)
		return p
	}

	first := pick(0.260117, nil)
	require.NotNil(t, first)
	assert.Equal(t, domain.PageImage, first.Type)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first.ID, pick(0.260117, nil).ID)
	}

	cat := domain.Character{Name: "Banned"}
	chars := repository.NewCharacterRepository()
	require.NoError(t, chars.Create(ctx, pool, &cat))
	all, err := pages.List(ctx, pool, 100, 0)
	require.NoError(t, err)
	for _, p := range all {
		if p.IsImage() {
			_, err := chars.Tag(ctx, pool, p.ID, cat.ID)
			require.NoError(t, err)
		}
	}
	assert.Nil(t, pick(0.260117, []string{"Banned"}))
}

func TestDaily_InsertIsUniquePerDate(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Pool(t)
	f := seed(t, pool)
	daily := repository.NewDailyChallengeRepository()
	date := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)

	require.NoError(t, daily.Insert(ctx, pool, &domain.DailyChallenge{Date: date, PageID: f.drawing.ID}))
	err := daily.Insert(ctx, pool, &domain.DailyChallenge{Date: date, PageID: f.drawing.ID})
	assert.True(t, infra.IsUniqueViolation(err))

	got, err := daily.FindByDate(ctx, pool, date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.drawing.ID, got.PageID)
}

func TestOutbox_FetchAndMark(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Pool(t)
	outbox := repository.NewOutboxRepository()

	for i := 0; i < 3; i++ {
		draft, err := domain.NewOutboxDraft(domain.AggregateGame, "1", domain.EventGameImported, map[string]int{"i": i})
		require.NoError(t, err)
		require.NoError(t, outbox.Insert(ctx, pool, draft))
	}

	events, err := outbox.FetchUnpublished(ctx, pool, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Less(t, events[0].SeqID, events[1].SeqID)
	assert.JSONEq(t, `{"i":0}`, string(events[0].Payload))

	require.NoError(t, outbox.MarkPublished(ctx, pool, []int64{events[0].SeqID, events[1].SeqID}))
	rest, err := outbox.FetchUnpublished(ctx, pool, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.JSONEq(t, `{"i":2}`, string(rest[0].Payload))
}

func TestOrphans_InsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Pool(t)
	orphans := repository.NewOrphanRepository()
	url := "https://f005.backblazeb2.com/file/bpp/panels/lost.png"

	require.NoError(t, orphans.Insert(ctx, pool, url, "upload aborted"))
	require.NoError(t, orphans.Insert(ctx, pool, url, "import rolled back"))

	list, err := orphans.List(ctx, pool, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "upload aborted", list[0].Reason)

	require.NoError(t, orphans.Delete(ctx, pool, list[0].ID))
	list, err = orphans.List(ctx, pool, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
