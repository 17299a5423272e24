package repository

import (
	"context"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Finders return (nil, nil) when no row matches.

// UserRepository provides access to users.
type UserRepository interface {
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.User, error)
	FindByTrueName(ctx context.Context, db DBTX, name string) (*domain.User, error)

	// Create inserts a user and sets its ID.
	Create(ctx context.Context, db DBTX, user *domain.User) error
	Update(ctx context.Context, db DBTX, user *domain.User) error

	// Delete removes a user; aliases keep existing with a NULL user_id.
	Delete(ctx context.Context, db DBTX, id int64) (bool, error)

	List(ctx context.Context, db DBTX, limit, offset int) ([]domain.User, error)
	Count(ctx context.Context, db DBTX) (int, error)

	// Search matches true names case-insensitively.
	Search(ctx context.Context, db DBTX, query string, limit int) ([]domain.User, error)

	// ListByGame returns the distinct (user, alias) pairs that contributed to a game.
	ListByGame(ctx context.Context, db DBTX, gameID int64) ([]Participant, error)
}

// Participant pairs a user with the alias they wrote under.
type Participant struct {
	User  domain.User  `json:"user"`
	Alias domain.Alias `json:"alias"`
}

// AliasRepository provides access to aliases.
type AliasRepository interface {
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.Alias, error)

	// FindByNameAndUser returns the alias with exactly this (name, user_id) pair.
	FindByNameAndUser(ctx context.Context, db DBTX, name string, userID int64) (*domain.Alias, error)

	Create(ctx context.Context, db DBTX, alias *domain.Alias) error
	Update(ctx context.Context, db DBTX, alias *domain.Alias) error
	Delete(ctx context.Context, db DBTX, id int64) (bool, error)
	List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Alias, error)
	Count(ctx context.Context, db DBTX) (int, error)
	ListByUser(ctx context.Context, db DBTX, userID int64) ([]domain.Alias, error)
}

// GameRepository provides access to games.
type GameRepository interface {
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.Game, error)
	Create(ctx context.Context, db DBTX, game *domain.Game) error
	Update(ctx context.Context, db DBTX, game *domain.Game) error

	// Delete removes a game; books and pages cascade.
	Delete(ctx context.Context, db DBTX, id int64) (bool, error)

	// List returns games newest first.
	List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Game, error)
	Count(ctx context.Context, db DBTX) (int, error)
}

// BookRepository provides access to books.
type BookRepository interface {
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.Book, error)
	Create(ctx context.Context, db DBTX, book *domain.Book) error
	Update(ctx context.Context, db DBTX, book *domain.Book) error
	Delete(ctx context.Context, db DBTX, id int64) (bool, error)
	List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Book, error)
	Count(ctx context.Context, db DBTX) (int, error)

	// ListByGame returns a game's books in insertion order.
	ListByGame(ctx context.Context, db DBTX, gameID int64) ([]domain.Book, error)

	// Recent returns the newest books by id.
	Recent(ctx context.Context, db DBTX, limit int) ([]domain.Book, error)

	// SearchByOpeningText matches books whose sequence-1 text page contains query.
	SearchByOpeningText(ctx context.Context, db DBTX, query string, limit int) ([]domain.Book, error)
}

// PageRepository provides access to pages.
type PageRepository interface {
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.Page, error)
	Create(ctx context.Context, db DBTX, page *domain.Page) error
	Update(ctx context.Context, db DBTX, page *domain.Page) error
	Delete(ctx context.Context, db DBTX, id int64) (bool, error)
	List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Page, error)
	Count(ctx context.Context, db DBTX) (int, error)

	// ListByBook returns a book's pages ordered by sequence.
	ListByBook(ctx context.Context, db DBTX, bookID int64) ([]domain.Page, error)

	// ListImagesByUser returns image pages drawn under any alias of the user.
	ListImagesByUser(ctx context.Context, db DBTX, userID int64) ([]domain.Page, error)

	// ListByCharacter returns pages tagged with a character.
	ListByCharacter(ctx context.Context, db DBTX, characterID int64) ([]domain.Page, error)

	// ImageURLsByGame returns content URLs of every image page in a game.
	ImageURLsByGame(ctx context.Context, db DBTX, gameID int64) ([]string, error)

	// ImageURLsByBook returns content URLs of every image page in a book.
	ImageURLsByBook(ctx context.Context, db DBTX, bookID int64) ([]string, error)

	// ExistsWithURL reports whether any page references url.
	ExistsWithURL(ctx context.Context, db DBTX, url string) (bool, error)
}

// CharacterRepository provides access to characters and page tags.
type CharacterRepository interface {
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.Character, error)
	Create(ctx context.Context, db DBTX, character *domain.Character) error
	Update(ctx context.Context, db DBTX, character *domain.Character) error
	Delete(ctx context.Context, db DBTX, id int64) (bool, error)
	List(ctx context.Context, db DBTX, limit, offset int) ([]domain.Character, error)
	Count(ctx context.Context, db DBTX) (int, error)
	Search(ctx context.Context, db DBTX, query string, limit int) ([]domain.Character, error)
	ListByPage(ctx context.Context, db DBTX, pageID int64) ([]domain.Character, error)

	// Tag links a character to a page. Returns false if the link already existed.
	Tag(ctx context.Context, db DBTX, pageID, characterID int64) (bool, error)
	Untag(ctx context.Context, db DBTX, pageID, characterID int64) (bool, error)

	// BackfillImage sets image_url only while it is still NULL.
	BackfillImage(ctx context.Context, db DBTX, characterID int64, url string) (bool, error)
}

// AdminKeyRepository provides access to admin_keys.
type AdminKeyRepository interface {
	Create(ctx context.Context, db DBTX, key *domain.AdminKey) error
	List(ctx context.Context, db DBTX) ([]domain.AdminKey, error)
	Delete(ctx context.Context, db DBTX, id int64) (bool, error)
}

// DailyChallengeRepository provides access to daily_challenges.
type DailyChallengeRepository interface {
	FindByDate(ctx context.Context, db DBTX, date time.Time) (*domain.DailyChallenge, error)

	// Insert writes the memo row. A concurrent winner surfaces as a unique violation.
	Insert(ctx context.Context, db DBTX, challenge *domain.DailyChallenge) error

	// PickEligible seeds the session's random source and returns one eligible
	// image page. Must run on a single connection (a transaction).
	PickEligible(ctx context.Context, tx pgx.Tx, seed float64, excluded []string) (*domain.Page, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the change).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns pending events in insertion order.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished deletes relayed events.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}

// OrphanRepository tracks uploads whose import never committed.
type OrphanRepository interface {
	Insert(ctx context.Context, db DBTX, url, reason string) error
	List(ctx context.Context, db DBTX, limit int) ([]domain.OrphanUpload, error)
	Delete(ctx context.Context, db DBTX, id int64) error
}

// TxBeginner is a DBTX that can open transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}
