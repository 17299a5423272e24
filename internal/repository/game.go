package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/jackc/pgx/v5"
)

type gameRepo struct{}

// NewGameRepository returns a pgx-backed GameRepository.
func NewGameRepository() GameRepository {
	return &gameRepo{}
}

func (r *gameRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.Game, error) {
	row := db.QueryRow(ctx, `
		SELECT id, date, title, override_image_url FROM games WHERE id = $1`, id)
	var g domain.Game
	err := row.Scan(&g.ID, &g.Date, &g.Title, &g.OverrideImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan game: %w", err)
	}
	return &g, nil
}

func (r *gameRepo) Create(ctx context.Context, db DBTX, game *domain.Game) error {
	err := db.QueryRow(ctx, `
		INSERT INTO games (date, title, override_image_url) VALUES ($1, $2, $3) RETURNING id`,
		game.Date, game.Title, game.OverrideImageURL).Scan(&game.ID)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (r *gameRepo) Update(ctx context.Context, db DBTX, game *domain.Game) error {
	tag, err := db.Exec(ctx, `
		UPDATE games SET date = $2, title = $3, override_image_url = $4 WHERE id = $1`,
		game.ID, game.Date, game.Title, game.OverrideImageURL)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("game", fmt.Sprint(game.ID))
	}
	return nil
}

func (r *gameRepo) Delete(ctx context.Context, db DBTX, id int64) (bool, error) {
	return deleteByID(ctx, db, "games", id)
}

func (r *gameRepo) List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Game, error) {
	rows, err := db.Query(ctx, `
		SELECT id, date, title, override_image_url FROM games
		ORDER BY date DESC, id DESC LIMIT $1 OFFSET $2`, clampLimit(limit), clampOffset(offset))
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []domain.Game
	for rows.Next() {
		var g domain.Game
		if err := rows.Scan(&g.ID, &g.Date, &g.Title, &g.OverrideImageURL); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *gameRepo) Count(ctx context.Context, db DBTX) (int, error) {
	return countRows(ctx, db, "games")
}
