package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/jackc/pgx/v5"
)

type characterRepo struct{}

// NewCharacterRepository returns a pgx-backed CharacterRepository.
func NewCharacterRepository() CharacterRepository {
	return &characterRepo{}
}

func (r *characterRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.Character, error) {
	var c domain.Character
	err := db.QueryRow(ctx, `
		SELECT id, name, description, image_url FROM characters WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan character: %w", err)
	}
	return &c, nil
}

func (r *characterRepo) Create(ctx context.Context, db DBTX, c *domain.Character) error {
	err := db.QueryRow(ctx, `
		INSERT INTO characters (name, description, image_url) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.Description, c.ImageURL).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

func (r *characterRepo) Update(ctx context.Context, db DBTX, c *domain.Character) error {
	tag, err := db.Exec(ctx, `
		UPDATE characters SET name = $2, description = $3, image_url = $4 WHERE id = $1`,
		c.ID, c.Name, c.Description, c.ImageURL)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("character", fmt.Sprint(c.ID))
	}
	return nil
}

func (r *characterRepo) Delete(ctx context.Context, db DBTX, id int64) (bool, error) {
	return deleteByID(ctx, db, "characters", id)
}

func (r *characterRepo) List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Character, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, description, image_url FROM characters
		ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2`, clampLimit(limit), clampOffset(offset))
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return collectCharacters(rows)
}

func (r *characterRepo) Count(ctx context.Context, db DBTX) (int, error) {
	return countRows(ctx, db, "characters")
}

func (r *characterRepo) Search(ctx context.Context, db DBTX, query string, limit int) ([]domain.Character, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, description, image_url FROM characters
		WHERE name ILIKE $1
		ORDER BY name ASC LIMIT $2`, likePattern(query), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search characters: %w", err)
	}
	return collectCharacters(rows)
}

func (r *characterRepo) ListByPage(ctx context.Context, db DBTX, pageID int64) ([]domain.Character, error) {
	rows, err := db.Query(ctx, `
		SELECT c.id, c.name, c.description, c.image_url FROM characters c
		JOIN page_characters pc ON pc.character_id = c.id
		WHERE pc.page_id = $1
		ORDER BY c.name ASC`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list characters by page: %w", err)
	}
	return collectCharacters(rows)
}

func (r *characterRepo) Tag(ctx context.Context, db DBTX, pageID, characterID int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO page_characters (page_id, character_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, pageID, characterID)
	if err != nil {
		return false, fmt.Errorf("tag page: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *characterRepo) Untag(ctx context.Context, db DBTX, pageID, characterID int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		DELETE FROM page_characters WHERE page_id = $1 AND character_id = $2`, pageID, characterID)
	if err != nil {
		return false, fmt.Errorf("untag page: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *characterRepo) BackfillImage(ctx context.Context, db DBTX, characterID int64, url string) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE characters SET image_url = $2 WHERE id = $1 AND image_url IS NULL`, characterID, url)
	if err != nil {
		return false, fmt.Errorf("backfill character image: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func collectCharacters(rows pgx.Rows) ([]domain.Character, error) {
	defer rows.Close()
	var out []domain.Character
	for rows.Next() {
		var c domain.Character
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
