package service

import (
	"context"
	"log/slog"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/repository"
)

const defaultSweepBatch = 500

// SweepResult summarises one orphan sweep.
type SweepResult struct {
	Scanned    int      `json:"scanned"`
	Removed    int      `json:"removed"`
	Referenced int      `json:"referenced"`
	Missing    int      `json:"missing"`
	Failed     []string `json:"failed,omitempty"`
}

// OrphanService removes bucket objects left behind by imports that never committed.
type OrphanService struct {
	db      repository.DBTX
	repos   Repos
	cleaner *RemoteCleaner
	logger  *slog.Logger
}

// NewOrphanService creates an OrphanService.
func NewOrphanService(db repository.DBTX, repos Repos, cleaner *RemoteCleaner, logger *slog.Logger) *OrphanService {
	return &OrphanService{db: db, repos: repos, cleaner: cleaner, logger: logger}
}

// Sweep processes up to limit recorded orphans. An object still referenced by
// a page is kept and only its orphan row is cleared, as is a row whose object
// is already gone from the bucket. Objects whose remote delete fails stay
// recorded for the next sweep.
func (s *OrphanService) Sweep(ctx context.Context, limit int) (*SweepResult, error) {
	if limit <= 0 {
		limit = defaultSweepBatch
	}
	orphans, err := s.repos.Orphans.List(ctx, s.db, limit)
	if err != nil {
		return nil, domain.ErrInternal("list orphans", err)
	}

	result := &SweepResult{Scanned: len(orphans)}
	for _, o := range orphans {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		used, err := s.repos.Pages.ExistsWithURL(ctx, s.db, o.URL)
		if err != nil {
			return result, domain.ErrInternal("check orphan reference", err)
		}
		switch {
		case used:
			result.Referenced++
		case s.cleaner.Gone(ctx, o.URL):
			result.Missing++
		default:
			if failed := s.cleaner.DeleteAll(ctx, []string{o.URL}); len(failed) > 0 {
				result.Failed = append(result.Failed, o.URL)
				continue
			}
			result.Removed++
		}

		if err := s.repos.Orphans.Delete(ctx, s.db, o.ID); err != nil {
			return result, domain.ErrInternal("delete orphan row", err)
		}
	}

	s.logger.Info("orphan sweep finished",
		"scanned", result.Scanned, "removed", result.Removed,
		"referenced", result.Referenced, "missing", result.Missing, "failed", len(result.Failed))
	return result, nil
}
