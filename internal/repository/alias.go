package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/jackc/pgx/v5"
)

type aliasRepo struct{}

// NewAliasRepository returns a pgx-backed AliasRepository.
func NewAliasRepository() AliasRepository {
	return &aliasRepo{}
}

func (r *aliasRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.Alias, error) {
	row := db.QueryRow(ctx, `SELECT id, name, user_id FROM aliases WHERE id = $1`, id)
	return scanAlias(row)
}

func (r *aliasRepo) FindByNameAndUser(ctx context.Context, db DBTX, name string, userID int64) (*domain.Alias, error) {
	row := db.QueryRow(ctx, `
		SELECT id, name, user_id FROM aliases
		WHERE name = $1 AND user_id = $2
		ORDER BY id ASC LIMIT 1`, name, userID)
	return scanAlias(row)
}

func (r *aliasRepo) Create(ctx context.Context, db DBTX, alias *domain.Alias) error {
	err := db.QueryRow(ctx, `
		INSERT INTO aliases (name, user_id) VALUES ($1, $2) RETURNING id`,
		alias.Name, alias.UserID).Scan(&alias.ID)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}

func (r *aliasRepo) Update(ctx context.Context, db DBTX, alias *domain.Alias) error {
	tag, err := db.Exec(ctx, `UPDATE aliases SET name = $2, user_id = $3 WHERE id = $1`,
		alias.ID, alias.Name, alias.UserID)
	if err != nil {
		return fmt.Errorf("update alias: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("alias", fmt.Sprint(alias.ID))
	}
	return nil
}

func (r *aliasRepo) Delete(ctx context.Context, db DBTX, id int64) (bool, error) {
	return deleteByID(ctx, db, "aliases", id)
}

func (r *aliasRepo) List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Alias, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, user_id FROM aliases
		ORDER BY id ASC LIMIT $1 OFFSET $2`, clampLimit(limit), clampOffset(offset))
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	return collectAliases(rows)
}

func (r *aliasRepo) Count(ctx context.Context, db DBTX) (int, error) {
	return countRows(ctx, db, "aliases")
}

func (r *aliasRepo) ListByUser(ctx context.Context, db DBTX, userID int64) ([]domain.Alias, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, user_id FROM aliases WHERE user_id = $1 ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list aliases by user: %w", err)
	}
	return collectAliases(rows)
}

func scanAlias(row pgx.Row) (*domain.Alias, error) {
	var a domain.Alias
	err := row.Scan(&a.ID, &a.Name, &a.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan alias: %w", err)
	}
	return &a, nil
}

func collectAliases(rows pgx.Rows) ([]domain.Alias, error) {
	defer rows.Close()
	var out []domain.Alias
	for rows.Next() {
		var a domain.Alias
		if err := rows.Scan(&a.ID, &a.Name, &a.UserID); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
