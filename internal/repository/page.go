package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/jackc/pgx/v5"
)

const pageColumns = `p.id, p.book_id, p.alias_id, p.sequence, p.type, p.content_text, p.content_url`

type pageRepo struct{}

// NewPageRepository returns a pgx-backed PageRepository.
func NewPageRepository() PageRepository {
	return &pageRepo{}
}

func (r *pageRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.Page, error) {
	row := db.QueryRow(ctx, `SELECT `+pageColumns+` FROM pages p WHERE p.id = $1`, id)
	return scanPage(row)
}

func (r *pageRepo) Create(ctx context.Context, db DBTX, page *domain.Page) error {
	err := db.QueryRow(ctx, `
		INSERT INTO pages (book_id, alias_id, sequence, type, content_text, content_url)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		page.BookID, page.AliasID, page.Sequence, string(page.Type), page.ContentText, page.ContentURL,
	).Scan(&page.ID)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

func (r *pageRepo) Update(ctx context.Context, db DBTX, page *domain.Page) error {
	tag, err := db.Exec(ctx, `
		UPDATE pages SET book_id = $2, alias_id = $3, sequence = $4, type = $5,
		                 content_text = $6, content_url = $7
		WHERE id = $1`,
		page.ID, page.BookID, page.AliasID, page.Sequence, string(page.Type), page.ContentText, page.ContentURL)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("page", fmt.Sprint(page.ID))
	}
	return nil
}

func (r *pageRepo) Delete(ctx context.Context, db DBTX, id int64) (bool, error) {
	return deleteByID(ctx, db, "pages", id)
}

func (r *pageRepo) List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Page, error) {
	rows, err := db.Query(ctx, `
		SELECT `+pageColumns+` FROM pages p
		ORDER BY p.id ASC LIMIT $1 OFFSET $2`, clampLimit(limit), clampOffset(offset))
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return collectPages(rows)
}

func (r *pageRepo) Count(ctx context.Context, db DBTX) (int, error) {
	return countRows(ctx, db, "pages")
}

func (r *pageRepo) ListByBook(ctx context.Context, db DBTX, bookID int64) ([]domain.Page, error) {
	rows, err := db.Query(ctx, `
		SELECT `+pageColumns+` FROM pages p
		WHERE p.book_id = $1 ORDER BY p.sequence ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list pages by book: %w", err)
	}
	return collectPages(rows)
}

func (r *pageRepo) ListImagesByUser(ctx context.Context, db DBTX, userID int64) ([]domain.Page, error) {
	rows, err := db.Query(ctx, `
		SELECT `+pageColumns+` FROM pages p
		JOIN aliases a ON a.id = p.alias_id
		WHERE a.user_id = $1 AND p.type = 'image'
		ORDER BY p.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list images by user: %w", err)
	}
	return collectPages(rows)
}

func (r *pageRepo) ListByCharacter(ctx context.Context, db DBTX, characterID int64) ([]domain.Page, error) {
	rows, err := db.Query(ctx, `
		SELECT `+pageColumns+` FROM pages p
		JOIN page_characters pc ON pc.page_id = p.id
		WHERE pc.character_id = $1
		ORDER BY p.id DESC`, characterID)
	if err != nil {
		return nil, fmt.Errorf("list pages by character: %w", err)
	}
	return collectPages(rows)
}

func (r *pageRepo) ImageURLsByGame(ctx context.Context, db DBTX, gameID int64) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT p.content_url FROM pages p
		JOIN books b ON b.id = p.book_id
		WHERE b.game_id = $1 AND p.type = 'image' AND p.content_url IS NOT NULL
		ORDER BY p.id ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("image urls by game: %w", err)
	}
	return collectStrings(rows)
}

func (r *pageRepo) ImageURLsByBook(ctx context.Context, db DBTX, bookID int64) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT p.content_url FROM pages p
		WHERE p.book_id = $1 AND p.type = 'image' AND p.content_url IS NOT NULL
		ORDER BY p.id ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("image urls by book: %w", err)
	}
	return collectStrings(rows)
}

func (r *pageRepo) ExistsWithURL(ctx context.Context, db DBTX, url string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pages WHERE content_url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("page url lookup: %w", err)
	}
	return exists, nil
}

func scanPage(row pgx.Row) (*domain.Page, error) {
	var p domain.Page
	var typ string
	err := row.Scan(&p.ID, &p.BookID, &p.AliasID, &p.Sequence, &typ, &p.ContentText, &p.ContentURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	p.Type = domain.PageType(typ)
	return &p, nil
}

func collectPages(rows pgx.Rows) ([]domain.Page, error) {
	defer rows.Close()
	var out []domain.Page
	for rows.Next() {
		var p domain.Page
		var typ string
		if err := rows.Scan(&p.ID, &p.BookID, &p.AliasID, &p.Sequence, &typ, &p.ContentText, &p.ContentURL); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		p.Type = domain.PageType(typ)
		out = append(out, p)
	}
	return out, rows.Err()
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
