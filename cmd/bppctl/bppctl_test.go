package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/guard"
	"github.com/bpparchive/archive/internal/importer"
	"github.com/bpparchive/archive/internal/service"
	"github.com/bpparchive/archive/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memRepos(s *memstore.Store) service.Repos {
	return service.Repos{
		Users:      s.UserRepo(),
		Aliases:    s.AliasRepo(),
		Games:      s.GameRepo(),
		Books:      s.BookRepo(),
		Pages:      s.PageRepo(),
		Characters: s.CharacterRepo(),
		AdminKeys:  s.AdminKeyRepo(),
		Daily:      s.DailyRepo(),
		Outbox:     s.OutboxRepo(),
		Orphans:    s.OrphanRepo(),
	}
}

type countingBucket struct {
	mu sync.Mutex
	n  int
}

func (b *countingBucket) Upload(_ context.Context, _ []byte, folder string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	return fmt.Sprintf("https://cdn.test/file/bpp/%s/%d.png", folder, b.n), nil
}

func (b *countingBucket) Delete(context.Context, string) error { return nil }

func (b *countingBucket) Exists(context.Context, string) (bool, error) { return true, nil }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMapping(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "authors.toml", `
[authors]
Alice = 3
Bob = "new"
"Zoë K" = "12"
`)

	m, err := loadMapping(path)
	require.NoError(t, err)
	assert.Equal(t, importer.Mapping{"Alice": "3", "Bob": "new", "Zoë K": "12"}, m)
}

func TestLoadMapping_RejectsOtherTypes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "authors.toml", "[authors]\nAlice = 1.5\n")

	_, err := loadMapping(path)
	var mErr *importer.MappingError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "Alice", mErr.Author)

	bad := writeFile(t, dir, "broken.toml", "[authors\n")
	_, err = loadMapping(bad)
	assert.Error(t, err)
}

func TestCollectHTML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.html", "")
	writeFile(t, dir, "a.HTML", "")
	writeFile(t, dir, "notes.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.html"), 0o755))
	single := writeFile(t, t.TempDir(), "single.html", "")

	paths, err := collectHTML([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.HTML"), filepath.Join(dir, "b.html"), single}, paths)

	_, err = collectHTML([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestLoadExports(t *testing.T) {
	files, err := loadExports(context.Background(), []string{"testdata/pizza_cat.html"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, []string{"Bob", "Alice"}, files[0].authors)

	bad := writeFile(t, t.TempDir(), "bad.html", "<h1>no date</h1>")
	_, err = loadExports(context.Background(), []string{"testdata/pizza_cat.html", bad})
	var pErr *importer.ParseError
	assert.ErrorAs(t, err, &pErr)
}

func TestMappingFor(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	alice := &domain.User{TrueName: "Alice"}
	require.NoError(t, store.UserRepo().Create(ctx, store, alice))

	base := importer.Mapping{"Bob": "7"}

	m, err := mappingFor(ctx, store, store.UserRepo(), []string{"Bob", "Alice", "Carol"}, base, true)
	require.NoError(t, err)
	assert.Equal(t, importer.Mapping{"Bob": "7", "Alice": fmt.Sprint(alice.ID), "Carol": "new"}, m)

	_, err = mappingFor(ctx, store, store.UserRepo(), []string{"Bob", "Alice"}, base, false)
	var mErr *importer.MappingError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "Alice", mErr.Author)
}

func TestImportAll_ReusesAuthorsAcrossFiles(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repos := memRepos(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	imports := service.NewImportService(store, repos, &countingBucket{}, guard.NewInFlightGuard(), 2, logger)

	html, err := os.ReadFile("testdata/pizza_cat.html")
	require.NoError(t, err)
	files := []exportFile{
		{path: "one.html", html: html, authors: []string{"Bob", "Alice"}},
		{path: "two.html", html: html, authors: []string{"Bob", "Alice"}},
	}

	var out bytes.Buffer
	err = importAll(ctx, &out, imports, store, repos.Users, files, importer.Mapping{}, &importOptions{allNew: true})
	require.NoError(t, err)

	assert.Len(t, store.Games(), 2)
	assert.Len(t, store.Users(), 2, "second file attaches to users created by the first")
	assert.Len(t, store.Aliases(), 2)
	assert.Contains(t, out.String(), "one.html: game")
	assert.Contains(t, out.String(), "two.html: game")
}

func TestImportAll_StopsOrContinues(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	html, err := os.ReadFile("testdata/pizza_cat.html")
	require.NoError(t, err)
	files := []exportFile{
		{path: "first.html", html: html, authors: []string{"Bob", "Alice"}},
		{path: "second.html", html: html, authors: []string{"Bob", "Alice"}},
	}
	// Alice is unmapped, so every file fails.
	base := importer.Mapping{"Bob": "new"}

	t.Run("stops", func(t *testing.T) {
		store := memstore.New()
		repos := memRepos(store)
		imports := service.NewImportService(store, repos, &countingBucket{}, guard.NewInFlightGuard(), 1, logger)

		var out bytes.Buffer
		err := importAll(ctx, &out, imports, store, repos.Users, files, base, &importOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "first.html")
		assert.NotContains(t, out.String(), "second.html")
		assert.Empty(t, store.Games())
	})

	t.Run("continues", func(t *testing.T) {
		store := memstore.New()
		repos := memRepos(store)
		imports := service.NewImportService(store, repos, &countingBucket{}, guard.NewInFlightGuard(), 1, logger)

		var out bytes.Buffer
		err := importAll(ctx, &out, imports, store, repos.Users, files, base, &importOptions{continueOnError: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 of 2 imports failed")
		assert.Contains(t, out.String(), "second.html: FAILED")
	})
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repos := memRepos(store)
	now := time.Date(2026, 3, 10, 15, 4, 0, 0, time.UTC)

	require.NoError(t, seedDemo(ctx, store, repos, now))

	assert.Len(t, store.Users(), 3)
	assert.Len(t, store.Aliases(), 5)
	assert.Len(t, store.Books(), 3)
	assert.Len(t, store.Pages(), 8)

	games := store.Games()
	require.Len(t, games, 2)
	dates := []string{games[0].Date.Format("2006-01-02"), games[1].Date.Format("2006-01-02")}
	assert.ElementsMatch(t, []string{"2026-03-03", "2026-03-09"}, dates)

	var tagged int
	for _, p := range store.Pages() {
		chars, err := repos.Characters.ListByPage(ctx, store, p.ID)
		require.NoError(t, err)
		tagged += len(chars)
		require.NoError(t, domain.ValidatePage(p))
	}
	assert.Equal(t, 2, tagged)

	assert.ErrorIs(t, seedDemo(ctx, store, repos, now), errNotEmpty)
}
