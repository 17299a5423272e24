package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/repository"
)

// CharacterService tags pages with recurring characters.
type CharacterService struct {
	pool   repository.TxBeginner
	repos  Repos
	logger *slog.Logger
}

// NewCharacterService creates a CharacterService.
func NewCharacterService(pool repository.TxBeginner, repos Repos, logger *slog.Logger) *CharacterService {
	return &CharacterService{pool: pool, repos: repos, logger: logger}
}

// TagResult reports what a Tag call changed.
type TagResult struct {
	PageID       int64            `json:"page_id"`
	Character    domain.Character `json:"character"`
	Added        bool             `json:"added"`
	ImageAdopted bool             `json:"image_adopted"`
}

// Tag links characterID to pageID. The first image page a character without
// an image is tagged on becomes its image; later tags leave it alone.
func (s *CharacterService) Tag(ctx context.Context, pageID, characterID int64) (*TagResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	page, err := s.repos.Pages.FindByID(ctx, tx, pageID)
	if err != nil {
		return nil, domain.ErrInternal("find page", err)
	}
	if page == nil {
		return nil, domain.ErrNotFound("page", strconv.FormatInt(pageID, 10))
	}
	character, err := s.repos.Characters.FindByID(ctx, tx, characterID)
	if err != nil {
		return nil, domain.ErrInternal("find character", err)
	}
	if character == nil {
		return nil, domain.ErrNotFound("character", strconv.FormatInt(characterID, 10))
	}

	added, err := s.repos.Characters.Tag(ctx, tx, pageID, characterID)
	if err != nil {
		return nil, domain.ErrInternal("tag page", err)
	}

	result := &TagResult{PageID: pageID, Added: added}
	if page.IsImage() && character.ImageURL == nil {
		adopted, err := s.repos.Characters.BackfillImage(ctx, tx, characterID, *page.ContentURL)
		if err != nil {
			return nil, domain.ErrInternal("backfill character image", err)
		}
		if adopted {
			character.ImageURL = page.ContentURL
			result.ImageAdopted = true
		}
	}
	result.Character = *character

	if added {
		draft, err := domain.NewOutboxDraft(domain.AggregateCharacter, strconv.FormatInt(characterID, 10),
			domain.EventCharacterTagged, map[string]interface{}{
				"character_id":  characterID,
				"page_id":       pageID,
				"image_adopted": result.ImageAdopted,
			})
		if err != nil {
			return nil, domain.ErrInternal("build outbox event", err)
		}
		if err := s.repos.Outbox.Insert(ctx, tx, draft); err != nil {
			return nil, domain.ErrInternal("insert outbox event", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tag", err)
	}

	if result.ImageAdopted {
		s.logger.Info("character image adopted from page", "character_id", characterID, "page_id", pageID)
	}
	return result, nil
}

// Untag removes the link between pageID and characterID. The character's
// image is kept even if it came from that page.
func (s *CharacterService) Untag(ctx context.Context, pageID, characterID int64) error {
	removed, err := s.repos.Characters.Untag(ctx, s.pool, pageID, characterID)
	if err != nil {
		return domain.ErrInternal("untag page", err)
	}
	if !removed {
		return domain.ErrNotFound("tag", fmt.Sprintf("page %d / character %d", pageID, characterID))
	}
	return nil
}
