package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/infra"
	"github.com/bpparchive/archive/internal/repository"
	lru "github.com/hashicorp/golang-lru"
)

// DailyService picks and memoizes the panel of the day.
type DailyService struct {
	pool     repository.TxBeginner
	repos    Repos
	excluded []string
	cache    *lru.Cache
	logger   *slog.Logger
	now      func() time.Time
}

// NewDailyService creates a DailyService. Pinned dates never change, so
// resolved dates are cached in a bounded LRU.
func NewDailyService(pool repository.TxBeginner, repos Repos, excluded []string, cacheSize int, logger *slog.Logger) (*DailyService, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("daily cache: %w", err)
	}
	return &DailyService{
		pool:     pool,
		repos:    repos,
		excluded: excluded,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// DailyPanel is the public view of the day's challenge. The author is only
// revealed through Guess.
type DailyPanel struct {
	Date     time.Time `json:"date"`
	PageID   int64     `json:"page_id"`
	BookID   int64     `json:"book_id"`
	ImageURL string    `json:"image_url"`
}

// GuessResult reports whether a guess was right and who drew the panel.
type GuessResult struct {
	Correct bool         `json:"correct"`
	Date    time.Time    `json:"date"`
	PageID  int64        `json:"page_id"`
	Author  domain.User  `json:"author"`
	Alias   domain.Alias `json:"alias"`
}

// DailySeed maps a date onto the [0, 1) seed range Postgres setseed accepts.
func DailySeed(date time.Time) float64 {
	n := date.Year()*10000 + int(date.Month())*100 + date.Day()
	return float64(n%1_000_000) / 1_000_000.0
}

// Today returns the current calendar date in UTC.
func (s *DailyService) Today() time.Time {
	return truncateDay(s.now())
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ForDate returns the pinned panel for date, pinning one first if needed.
func (s *DailyService) ForDate(ctx context.Context, date time.Time) (*DailyPanel, error) {
	date = truncateDay(date)

	pageID, err := s.pageIDFor(ctx, date)
	if err != nil {
		return nil, err
	}

	page, err := s.repos.Pages.FindByID(ctx, s.pool, pageID)
	if err != nil {
		return nil, domain.ErrInternal("find daily page", err)
	}
	if page == nil || page.ContentURL == nil {
		s.cache.Remove(dateCacheKey(date))
		return nil, domain.ErrNotFound("daily panel", dateCacheKey(date))
	}

	return &DailyPanel{
		Date:     date,
		PageID:   page.ID,
		BookID:   page.BookID,
		ImageURL: *page.ContentURL,
	}, nil
}

func dateCacheKey(date time.Time) string {
	return date.Format("2006-01-02")
}

func (s *DailyService) pageIDFor(ctx context.Context, date time.Time) (int64, error) {
	key := dateCacheKey(date)
	if v, ok := s.cache.Get(key); ok {
		return v.(int64), nil
	}

	existing, err := s.repos.Daily.FindByDate(ctx, s.pool, date)
	if err != nil {
		return 0, domain.ErrInternal("find daily challenge", err)
	}
	if existing != nil {
		s.cache.Add(key, existing.PageID)
		return existing.PageID, nil
	}

	pageID, err := s.pin(ctx, date)
	if err != nil {
		return 0, err
	}
	s.cache.Add(key, pageID)
	return pageID, nil
}

// pin draws an eligible page and inserts the memo row. A concurrent writer
// that got there first wins; its row is read back instead.
func (s *DailyService) pin(ctx context.Context, date time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	page, err := s.repos.Daily.PickEligible(ctx, tx, DailySeed(date), s.excluded)
	if err != nil {
		return 0, domain.ErrInternal("pick daily page", err)
	}
	if page == nil {
		return 0, domain.ErrNotFound("eligible daily panel", dateCacheKey(date))
	}

	challenge := &domain.DailyChallenge{Date: date, PageID: page.ID}
	if err := s.repos.Daily.Insert(ctx, tx, challenge); err != nil {
		if !infra.IsUniqueViolation(err) {
			return 0, domain.ErrInternal("insert daily challenge", err)
		}
		_ = tx.Rollback(ctx)
		return s.readBack(ctx, date)
	}

	draft, err := domain.NewOutboxDraft(domain.AggregateDaily, dateCacheKey(date), domain.EventDailyPanelPinned,
		map[string]interface{}{"date": dateCacheKey(date), "page_id": page.ID})
	if err != nil {
		return 0, domain.ErrInternal("build outbox event", err)
	}
	if err := s.repos.Outbox.Insert(ctx, tx, draft); err != nil {
		return 0, domain.ErrInternal("insert outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if infra.IsUniqueViolation(err) {
			return s.readBack(ctx, date)
		}
		return 0, domain.ErrInternal("commit daily challenge", err)
	}

	s.logger.Info("daily panel pinned", "date", dateCacheKey(date), "page_id", page.ID)
	return page.ID, nil
}

func (s *DailyService) readBack(ctx context.Context, date time.Time) (int64, error) {
	winner, err := s.repos.Daily.FindByDate(ctx, s.pool, date)
	if err != nil {
		return 0, domain.ErrInternal("re-read daily challenge", err)
	}
	if winner == nil {
		return 0, domain.ErrInternal("daily challenge vanished after conflict", nil)
	}
	s.logger.Debug("daily panel pinned concurrently", "date", dateCacheKey(date), "page_id", winner.PageID)
	return winner.PageID, nil
}

// Guess checks whether userID drew the panel of date.
func (s *DailyService) Guess(ctx context.Context, date time.Time, userID int64) (*GuessResult, error) {
	panel, err := s.ForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	page, err := s.repos.Pages.FindByID(ctx, s.pool, panel.PageID)
	if err != nil {
		return nil, domain.ErrInternal("find daily page", err)
	}
	if page == nil || page.AliasID == nil {
		return nil, domain.ErrNotFound("daily panel author", strconv.FormatInt(panel.PageID, 10))
	}

	alias, err := s.repos.Aliases.FindByID(ctx, s.pool, *page.AliasID)
	if err != nil {
		return nil, domain.ErrInternal("find alias", err)
	}
	if alias == nil || alias.UserID == nil {
		return nil, domain.ErrNotFound("daily panel author", strconv.FormatInt(panel.PageID, 10))
	}
	author, err := s.repos.Users.FindByID(ctx, s.pool, *alias.UserID)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if author == nil {
		return nil, domain.ErrNotFound("user", strconv.FormatInt(*alias.UserID, 10))
	}

	return &GuessResult{
		Correct: author.ID == userID,
		Date:    panel.Date,
		PageID:  panel.PageID,
		Author:  *author,
		Alias:   *alias,
	}, nil
}
