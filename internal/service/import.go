package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/guard"
	"github.com/bpparchive/archive/internal/importer"
	"github.com/bpparchive/archive/internal/infra"
	"github.com/bpparchive/archive/internal/repository"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/errgroup"
)

// ImportService turns exported game documents into persisted games.
type ImportService struct {
	pool        repository.TxBeginner
	repos       Repos
	resolver    *importer.Resolver
	store       ObjectStore
	inflight    *guard.InFlightGuard
	concurrency int
	logger      *slog.Logger
}

// NewImportService creates an ImportService. concurrency bounds parallel uploads.
func NewImportService(
	pool repository.TxBeginner,
	repos Repos,
	store ObjectStore,
	inflight *guard.InFlightGuard,
	concurrency int,
	logger *slog.Logger,
) *ImportService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ImportService{
		pool:        pool,
		repos:       repos,
		resolver:    importer.NewResolver(repos.Users, repos.Aliases),
		store:       store,
		inflight:    inflight,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ImportInput is one uploaded export plus the admin's author decisions.
type ImportInput struct {
	HTML    []byte           `json:"-"`
	Mapping importer.Mapping `json:"mapping"`
	Title   string           `json:"title,omitempty"`
	Folder  string           `json:"folder,omitempty"`
}

// ImportResult summarizes a committed import.
type ImportResult struct {
	GameID   int64            `json:"game_id"`
	Title    string           `json:"title"`
	Date     time.Time        `json:"date"`
	Books    int              `json:"books"`
	Pages    int              `json:"pages"`
	Images   int              `json:"images"`
	Authors  map[string]int64 `json:"authors"`
	Warnings []string         `json:"warnings,omitempty"`
}

// AuthorPreview describes one author found in an export.
type AuthorPreview struct {
	Name        string        `json:"name"`
	Pages       int           `json:"pages"`
	Suggestions []domain.User `json:"suggestions"`
}

// ImportPreview is what an admin needs to build a mapping.
type ImportPreview struct {
	Date          time.Time             `json:"date"`
	DateAmbiguous bool                  `json:"date_ambiguous"`
	Books         []importer.ParsedBook `json:"books"`
	Authors       []AuthorPreview       `json:"authors"`
}

const maxSuggestions = 5

// Preview parses an export without persisting anything and suggests
// existing users for each author name.
func (s *ImportService) Preview(ctx context.Context, html []byte) (*ImportPreview, error) {
	parsed, err := importer.Parse(bytes.NewReader(html))
	if err != nil {
		return nil, importError(err)
	}

	users, err := allUsers(ctx, s.pool, s.repos.Users)
	if err != nil {
		return nil, domain.ErrInternal("list users", err)
	}
	trueNames := make(names, len(users))
	for i, u := range users {
		trueNames[i] = u.TrueName
	}

	counts := make(map[string]int)
	for _, b := range parsed.Books {
		for _, p := range b.Pages {
			counts[p.Author]++
		}
	}

	preview := &ImportPreview{
		Date:          parsed.Date,
		DateAmbiguous: parsed.DateAmbiguous,
		Books:         parsed.Books,
	}
	for _, name := range parsed.Authors() {
		ap := AuthorPreview{Name: name, Pages: counts[name], Suggestions: []domain.User{}}
		for _, m := range fuzzy.FindFrom(name, trueNames) {
			if len(ap.Suggestions) == maxSuggestions {
				break
			}
			ap.Suggestions = append(ap.Suggestions, users[m.Index])
		}
		preview.Authors = append(preview.Authors, ap)
	}
	return preview, nil
}

// Import runs parse, upload and persist for one document. Nothing is
// persisted unless every step succeeds; uploads made before a failure are
// recorded as orphans for the sweep.
func (s *ImportService) Import(ctx context.Context, input ImportInput) (*ImportResult, error) {
	sum := sha256.Sum256(input.HTML)
	docKey := hex.EncodeToString(sum[:])
	if res := s.inflight.Acquire(ctx, docKey); !res.Allowed {
		return nil, domain.ErrConflict(res.Reason)
	}
	defer s.inflight.Release(docKey)

	parsed, err := importer.Parse(bytes.NewReader(input.HTML))
	if err != nil {
		return nil, importError(err)
	}
	if err := domain.ValidateTitle(input.Title); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateFolder(input.Folder); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := input.Mapping.Check(parsed.Authors()); err != nil {
		return nil, importError(err)
	}

	var warnings []string
	if parsed.DateAmbiguous {
		warnings = append(warnings, fmt.Sprintf(
			"date %q is ambiguous; read as %s (month first)", parsed.RawDate, parsed.Date.Format("2006-01-02")))
		s.logger.Warn("ambiguous import date", "raw", parsed.RawDate, "chosen", parsed.Date.Format("2006-01-02"))
	}

	urls, err := s.uploadImages(ctx, parsed, input.Folder)
	if err != nil {
		s.recordOrphans(urls, "upload aborted")
		return nil, domain.ErrUpstream("upload images", err)
	}

	result, err := s.persist(ctx, parsed, input, urls)
	if err != nil {
		s.recordOrphans(urls, "import rolled back")
		return nil, importError(err)
	}
	result.Warnings = warnings

	s.logger.Info("game imported",
		"game_id", result.GameID,
		"books", result.Books,
		"pages", result.Pages,
		"images", result.Images,
	)
	return result, nil
}

// pageRef addresses a parsed page by book index and sequence.
type pageRef struct{ book, sequence int }

// uploadImages uploads every image page with bounded parallelism. The
// returned map holds every upload that succeeded, even when err is set.
func (s *ImportService) uploadImages(ctx context.Context, parsed *importer.ParsedGame, folder string) (map[pageRef]string, error) {
	var mu sync.Mutex
	urls := make(map[pageRef]string, parsed.ImageCount())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for bi, b := range parsed.Books {
		for _, p := range b.Pages {
			if p.Type != domain.PageImage {
				continue
			}
			ref, content := pageRef{bi, p.Sequence}, p.Content
			g.Go(func() error {
				data, err := infra.DecodeBase64Image(content)
				if err != nil {
					return fmt.Errorf("book %d page %d: %w", ref.book+1, ref.sequence, err)
				}
				url, err := s.store.Upload(gctx, data, folder)
				if err != nil {
					return fmt.Errorf("book %d page %d: %w", ref.book+1, ref.sequence, err)
				}
				mu.Lock()
				urls[ref] = url
				mu.Unlock()
				return nil
			})
		}
	}

	err := g.Wait()
	return urls, err
}

func (s *ImportService) persist(ctx context.Context, parsed *importer.ParsedGame, input ImportInput, urls map[pageRef]string) (*ImportResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	aliasIDs, err := s.resolver.Resolve(ctx, tx, parsed.Authors(), input.Mapping)
	if err != nil {
		return nil, err
	}

	game := &domain.Game{Date: parsed.Date, Title: strPtr(input.Title)}
	if err := s.repos.Games.Create(ctx, tx, game); err != nil {
		return nil, err
	}

	result := &ImportResult{
		GameID:  game.ID,
		Title:   game.DisplayTitle(),
		Date:    game.Date,
		Authors: aliasIDs,
	}

	for bi, b := range parsed.Books {
		book := &domain.Book{GameID: game.ID, Title: strPtr(b.Title)}
		if err := s.repos.Books.Create(ctx, tx, book); err != nil {
			return nil, err
		}
		result.Books++

		pages := append([]importer.ParsedPage(nil), b.Pages...)
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].Sequence < pages[j].Sequence })
		for _, p := range pages {
			aliasID := aliasIDs[p.Author]
			var page domain.Page
			if p.Type == domain.PageImage {
				page = domain.NewImagePage(book.ID, &aliasID, p.Sequence, urls[pageRef{bi, p.Sequence}])
				result.Images++
			} else {
				page = domain.NewTextPage(book.ID, &aliasID, p.Sequence, p.Content)
			}
			if err := domain.ValidatePage(page); err != nil {
				return nil, domain.ErrValidation(fmt.Sprintf("book %q page %d: %v", b.Title, p.Sequence, err))
			}
			if err := s.repos.Pages.Create(ctx, tx, &page); err != nil {
				return nil, err
			}
			result.Pages++
		}
	}

	draft, err := domain.NewOutboxDraft(domain.AggregateGame, strconv.FormatInt(game.ID, 10), domain.EventGameImported, map[string]interface{}{
		"game_id": game.ID,
		"date":    game.Date.Format("2006-01-02"),
		"books":   result.Books,
		"pages":   result.Pages,
		"images":  result.Images,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repos.Outbox.Insert(ctx, tx, draft); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return result, nil
}

// recordOrphans remembers uploads whose import did not commit. It runs on a
// fresh context so a cancelled request still leaves a trail for the sweep.
func (s *ImportService) recordOrphans(urls map[pageRef]string, reason string) {
	if len(urls) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, url := range urls {
		if err := s.repos.Orphans.Insert(ctx, s.pool, url, reason); err != nil {
			s.logger.Error("failed to record orphan upload", "url", url, "error", err)
		}
	}
	s.logger.Warn("import left orphaned uploads", "count", len(urls), "reason", reason)
}
