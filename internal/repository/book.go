package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/jackc/pgx/v5"
)

type bookRepo struct{}

// NewBookRepository returns a pgx-backed BookRepository.
func NewBookRepository() BookRepository {
	return &bookRepo{}
}

func (r *bookRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.Book, error) {
	var b domain.Book
	err := db.QueryRow(ctx, `SELECT id, game_id, title FROM books WHERE id = $1`, id).
		Scan(&b.ID, &b.GameID, &b.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan book: %w", err)
	}
	return &b, nil
}

func (r *bookRepo) Create(ctx context.Context, db DBTX, book *domain.Book) error {
	err := db.QueryRow(ctx, `
		INSERT INTO books (game_id, title) VALUES ($1, $2) RETURNING id`,
		book.GameID, book.Title).Scan(&book.ID)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *bookRepo) Update(ctx context.Context, db DBTX, book *domain.Book) error {
	tag, err := db.Exec(ctx, `UPDATE books SET game_id = $2, title = $3 WHERE id = $1`,
		book.ID, book.GameID, book.Title)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("book", fmt.Sprint(book.ID))
	}
	return nil
}

func (r *bookRepo) Delete(ctx context.Context, db DBTX, id int64) (bool, error) {
	return deleteByID(ctx, db, "books", id)
}

func (r *bookRepo) List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Book, error) {
	rows, err := db.Query(ctx, `
		SELECT id, game_id, title FROM books
		ORDER BY id DESC LIMIT $1 OFFSET $2`, clampLimit(limit), clampOffset(offset))
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return collectBooks(rows)
}

func (r *bookRepo) Count(ctx context.Context, db DBTX) (int, error) {
	return countRows(ctx, db, "books")
}

func (r *bookRepo) ListByGame(ctx context.Context, db DBTX, gameID int64) ([]domain.Book, error) {
	rows, err := db.Query(ctx, `
		SELECT id, game_id, title FROM books WHERE game_id = $1 ORDER BY id ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list books by game: %w", err)
	}
	return collectBooks(rows)
}

func (r *bookRepo) Recent(ctx context.Context, db DBTX, limit int) ([]domain.Book, error) {
	rows, err := db.Query(ctx, `
		SELECT id, game_id, title FROM books ORDER BY id DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent books: %w", err)
	}
	return collectBooks(rows)
}

func (r *bookRepo) SearchByOpeningText(ctx context.Context, db DBTX, query string, limit int) ([]domain.Book, error) {
	rows, err := db.Query(ctx, `
		SELECT b.id, b.game_id, b.title
		FROM books b
		JOIN pages p ON p.book_id = b.id
		WHERE p.type = 'text' AND p.sequence = 1 AND p.content_text ILIKE $1
		ORDER BY b.id DESC LIMIT $2`, likePattern(query), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return collectBooks(rows)
}

func collectBooks(rows pgx.Rows) ([]domain.Book, error) {
	defer rows.Close()
	var out []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.GameID, &b.Title); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
