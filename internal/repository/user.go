package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/jackc/pgx/v5"
)

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

func (r *userRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT id, true_name, description FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) FindByTrueName(ctx context.Context, db DBTX, name string) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT id, true_name, description FROM users WHERE true_name = $1`, name)
	return scanUser(row)
}

func (r *userRepo) Create(ctx context.Context, db DBTX, user *domain.User) error {
	err := db.QueryRow(ctx, `
		INSERT INTO users (true_name, description) VALUES ($1, $2) RETURNING id`,
		user.TrueName, user.Description).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepo) Update(ctx context.Context, db DBTX, user *domain.User) error {
	tag, err := db.Exec(ctx, `
		UPDATE users SET true_name = $2, description = $3 WHERE id = $1`,
		user.ID, user.TrueName, user.Description)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("user", fmt.Sprint(user.ID))
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, db DBTX, id int64) (bool, error) {
	return deleteByID(ctx, db, "users", id)
}

func (r *userRepo) List(ctx context.Context, db DBTX, limit, offset int) ([]domain.User, error) {
	rows, err := db.Query(ctx, `
		SELECT id, true_name, description FROM users
		ORDER BY true_name ASC LIMIT $1 OFFSET $2`, clampLimit(limit), clampOffset(offset))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

func (r *userRepo) Count(ctx context.Context, db DBTX) (int, error) {
	return countRows(ctx, db, "users")
}

func (r *userRepo) Search(ctx context.Context, db DBTX, query string, limit int) ([]domain.User, error) {
	rows, err := db.Query(ctx, `
		SELECT id, true_name, description FROM users
		WHERE true_name ILIKE $1
		ORDER BY true_name ASC LIMIT $2`, likePattern(query), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return collectUsers(rows)
}

func (r *userRepo) ListByGame(ctx context.Context, db DBTX, gameID int64) ([]Participant, error) {
	rows, err := db.Query(ctx, `
		SELECT DISTINCT u.id, u.true_name, u.description, a.id, a.name, a.user_id
		FROM books b
		JOIN pages p ON p.book_id = b.id
		JOIN aliases a ON a.id = p.alias_id
		JOIN users u ON u.id = a.user_id
		WHERE b.game_id = $1
		ORDER BY u.true_name ASC, a.name ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.User.ID, &p.User.TrueName, &p.User.Description,
			&p.Alias.ID, &p.Alias.Name, &p.Alias.UserID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TrueName, &u.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.TrueName, &u.Description); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
