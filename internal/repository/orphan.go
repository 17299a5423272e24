package repository

import (
	"context"
	"fmt"

	"github.com/bpparchive/archive/internal/domain"
)

type orphanRepo struct{}

// NewOrphanRepository returns a pgx-backed OrphanRepository.
func NewOrphanRepository() OrphanRepository {
	return &orphanRepo{}
}

// Insert records url; recording the same url twice keeps the first reason.
func (r *orphanRepo) Insert(ctx context.Context, db DBTX, url, reason string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO orphan_uploads (url, reason) VALUES ($1, $2)
		ON CONFLICT (url) DO NOTHING`, url, reason)
	if err != nil {
		return fmt.Errorf("insert orphan upload: %w", err)
	}
	return nil
}

func (r *orphanRepo) List(ctx context.Context, db DBTX, limit int) ([]domain.OrphanUpload, error) {
	rows, err := db.Query(ctx, `
		SELECT id, url, reason, created_at FROM orphan_uploads
		ORDER BY id ASC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list orphan uploads: %w", err)
	}
	defer rows.Close()

	var out []domain.OrphanUpload
	for rows.Next() {
		var o domain.OrphanUpload
		if err := rows.Scan(&o.ID, &o.URL, &o.Reason, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan orphan upload: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *orphanRepo) Delete(ctx context.Context, db DBTX, id int64) error {
	if _, err := db.Exec(ctx, `DELETE FROM orphan_uploads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete orphan upload: %w", err)
	}
	return nil
}
