package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/guard"
	"github.com/bpparchive/archive/internal/infra"
	"github.com/bpparchive/archive/internal/testutil/memstore"
	"github.com/stretchr/testify/require"
)

const testBucketHost = "https://cdn.test/file/bpp/"

var errUploadFailed = errors.New("bucket unavailable")

// fakeBucket is an ObjectStore that keeps objects in memory.
type fakeBucket struct {
	mu        sync.Mutex
	n         int
	objects   map[string]bool
	deleted   []string
	failAfter int // fail uploads once this many succeeded; 0 disables
	deleteErr error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]bool{}}
}

func (b *fakeBucket) Upload(_ context.Context, data []byte, folder string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	if b.failAfter > 0 && b.n >= b.failAfter {
		return "", errUploadFailed
	}
	if folder == "" {
		folder = infra.DefaultImageFolder
	}
	b.n++
	url := fmt.Sprintf("%s%s/%d.png", testBucketHost, folder, b.n)
	b.objects[url] = true
	return url, nil
}

func (b *fakeBucket) Delete(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(url) < len(testBucketHost) || url[:len(testBucketHost)] != testBucketHost {
		return fmt.Errorf("%w: %s", infra.ErrForeignURL, url)
	}
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, url)
	b.deleted = append(b.deleted, url)
	return nil
}

func (b *fakeBucket) Exists(_ context.Context, url string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(url) < len(testBucketHost) || url[:len(testBucketHost)] != testBucketHost {
		return false, fmt.Errorf("%w: %s", infra.ErrForeignURL, url)
	}
	return b.objects[url], nil
}

func (b *fakeBucket) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRepos(store *memstore.Store) Repos {
	return Repos{
		Users:      store.UserRepo(),
		Aliases:    store.AliasRepo(),
		Games:      store.GameRepo(),
		Books:      store.BookRepo(),
		Pages:      store.PageRepo(),
		Characters: store.CharacterRepo(),
		AdminKeys:  store.AdminKeyRepo(),
		Daily:      store.DailyRepo(),
		Outbox:     store.OutboxRepo(),
		Orphans:    store.OrphanRepo(),
	}
}

func testCleaner(bucket ObjectStore) *RemoteCleaner {
	return NewRemoteCleaner(bucket, guard.NewCircuitBreaker(3, time.Minute), testLogger())
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return raw
}

func requireAppError(t *testing.T, err error, code string, status int) *domain.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	require.Equal(t, status, appErr.Status)
	return appErr
}

type seeded struct {
	game    domain.Game
	book    domain.Book
	caption domain.Page
	drawing domain.Page
	alice   domain.User
	bob     domain.User
}

// seedArchive builds one game with a single book: a caption by Bob and a
// drawing by Alice, both attached to users of the same names.
func seedArchive(t *testing.T, store *memstore.Store) seeded {
	t.Helper()
	ctx := context.Background()
	repos := testRepos(store)

	var s seeded
	s.alice = domain.User{TrueName: "Alice"}
	s.bob = domain.User{TrueName: "Bob"}
	require.NoError(t, repos.Users.Create(ctx, store, &s.alice))
	require.NoError(t, repos.Users.Create(ctx, store, &s.bob))

	aliceAlias := domain.Alias{Name: "Alice", UserID: &s.alice.ID}
	bobAlias := domain.Alias{Name: "Bob", UserID: &s.bob.ID}
	require.NoError(t, repos.Aliases.Create(ctx, store, &aliceAlias))
	require.NoError(t, repos.Aliases.Create(ctx, store, &bobAlias))

	s.game = domain.Game{Date: time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repos.Games.Create(ctx, store, &s.game))
	title := "Pizza Cat"
	s.book = domain.Book{GameID: s.game.ID, Title: &title}
	require.NoError(t, repos.Books.Create(ctx, store, &s.book))

	s.caption = domain.NewTextPage(s.book.ID, &bobAlias.ID, 1, "A cat eating pizza")
	s.drawing = domain.NewImagePage(s.book.ID, &aliceAlias.ID, 2, testBucketHost+"panels/seed.png")
	require.NoError(t, repos.Pages.Create(ctx, store, &s.caption))
	require.NoError(t, repos.Pages.Create(ctx, store, &s.drawing))
	return s
}
