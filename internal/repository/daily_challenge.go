package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/jackc/pgx/v5"
)

type dailyChallengeRepo struct{}

// NewDailyChallengeRepository returns a pgx-backed DailyChallengeRepository.
func NewDailyChallengeRepository() DailyChallengeRepository {
	return &dailyChallengeRepo{}
}

func (r *dailyChallengeRepo) FindByDate(ctx context.Context, db DBTX, date time.Time) (*domain.DailyChallenge, error) {
	var d domain.DailyChallenge
	err := db.QueryRow(ctx, `
		SELECT id, date, page_id FROM daily_challenges WHERE date = $1`, date).
		Scan(&d.ID, &d.Date, &d.PageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan daily challenge: %w", err)
	}
	return &d, nil
}

func (r *dailyChallengeRepo) Insert(ctx context.Context, db DBTX, d *domain.DailyChallenge) error {
	err := db.QueryRow(ctx, `
		INSERT INTO daily_challenges (date, page_id) VALUES ($1, $2) RETURNING id`,
		d.Date, d.PageID).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("insert daily challenge: %w", err)
	}
	return nil
}

// PickEligible draws an image page credited to a known user and not tagged
// with any excluded character. setseed only affects the current session, so
// both statements must share tx.
func (r *dailyChallengeRepo) PickEligible(ctx context.Context, tx pgx.Tx, seed float64, excluded []string) (*domain.Page, error) {
	if _, err := tx.Exec(ctx, `SELECT setseed($1)`, seed); err != nil {
		return nil, fmt.Errorf("seed random: %w", err)
	}
	if excluded == nil {
		excluded = []string{}
	}
	// The inner ORDER BY fixes the row order random() is evaluated in, so a
	// given seed always draws the same page from the same data.
	row := tx.QueryRow(ctx, `
		SELECT p.id, p.book_id, p.alias_id, p.sequence, p.type, p.content_text, p.content_url
		FROM (
		    SELECT `+pageColumns+`
		    FROM pages p
		    JOIN aliases a ON a.id = p.alias_id
		    WHERE p.type = 'image'
		      AND p.content_url IS NOT NULL
		      AND a.user_id IS NOT NULL
		      AND NOT EXISTS (
		          SELECT 1 FROM page_characters pc
		          JOIN characters c ON c.id = pc.character_id
		          WHERE pc.page_id = p.id AND c.name = ANY($1)
		      )
		    ORDER BY p.id ASC
		) p
		ORDER BY random()
		LIMIT 1`, excluded)
	return scanPage(row)
}
