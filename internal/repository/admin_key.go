package repository

import (
	"context"
	"fmt"

	"github.com/bpparchive/archive/internal/domain"
)

type adminKeyRepo struct{}

// NewAdminKeyRepository returns a pgx-backed AdminKeyRepository.
func NewAdminKeyRepository() AdminKeyRepository {
	return &adminKeyRepo{}
}

func (r *adminKeyRepo) Create(ctx context.Context, db DBTX, key *domain.AdminKey) error {
	err := db.QueryRow(ctx, `
		INSERT INTO admin_keys (key_name, hash) VALUES ($1, $2) RETURNING id, created_at`,
		key.KeyName, key.Hash).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert admin key: %w", err)
	}
	return nil
}

// List returns every key including its hash; login verification needs them all.
func (r *adminKeyRepo) List(ctx context.Context, db DBTX) ([]domain.AdminKey, error) {
	rows, err := db.Query(ctx, `
		SELECT id, key_name, hash, created_at FROM admin_keys ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list admin keys: %w", err)
	}
	defer rows.Close()

	var out []domain.AdminKey
	for rows.Next() {
		var k domain.AdminKey
		if err := rows.Scan(&k.ID, &k.KeyName, &k.Hash, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *adminKeyRepo) Delete(ctx context.Context, db DBTX, id int64) (bool, error) {
	return deleteByID(ctx, db, "admin_keys", id)
}
