package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/guard"
	"github.com/bpparchive/archive/internal/importer"
	"github.com/bpparchive/archive/internal/infra"
	"github.com/bpparchive/archive/internal/repository"
	"github.com/sahilm/fuzzy"
)

// ObjectStore is the part of the image bucket the services use.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, folder string) (string, error)
	Delete(ctx context.Context, url string) error
	Exists(ctx context.Context, url string) (bool, error)
}

// Repos bundles the repositories shared by the services.
type Repos struct {
	Users      repository.UserRepository
	Aliases    repository.AliasRepository
	Games      repository.GameRepository
	Books      repository.BookRepository
	Pages      repository.PageRepository
	Characters repository.CharacterRepository
	AdminKeys  repository.AdminKeyRepository
	Daily      repository.DailyChallengeRepository
	Outbox     repository.OutboxRepository
	Orphans    repository.OrphanRepository
}

// NewRepos returns the pgx-backed repositories.
func NewRepos() Repos {
	return Repos{
		Users:      repository.NewUserRepository(),
		Aliases:    repository.NewAliasRepository(),
		Games:      repository.NewGameRepository(),
		Books:      repository.NewBookRepository(),
		Pages:      repository.NewPageRepository(),
		Characters: repository.NewCharacterRepository(),
		AdminKeys:  repository.NewAdminKeyRepository(),
		Daily:      repository.NewDailyChallengeRepository(),
		Outbox:     repository.NewOutboxRepository(),
		Orphans:    repository.NewOrphanRepository(),
	}
}

const remoteDeleteKey = "objectstore.delete"

// RemoteCleaner deletes bucket objects best-effort behind a circuit breaker.
type RemoteCleaner struct {
	store   ObjectStore
	breaker *guard.CircuitBreaker
	logger  *slog.Logger
}

// NewRemoteCleaner creates a RemoteCleaner.
func NewRemoteCleaner(store ObjectStore, breaker *guard.CircuitBreaker, logger *slog.Logger) *RemoteCleaner {
	return &RemoteCleaner{store: store, breaker: breaker, logger: logger}
}

// DeleteAll removes every url and returns the ones that could not be removed.
// Failures are logged, never returned as errors.
func (c *RemoteCleaner) DeleteAll(ctx context.Context, urls []string) []string {
	var failed []string
	for _, url := range urls {
		foreign := false
		err := c.breaker.Call(ctx, remoteDeleteKey, func(ctx context.Context) error {
			err := c.store.Delete(ctx, url)
			if errors.Is(err, infra.ErrForeignURL) {
				foreign = true
				return nil
			}
			return err
		})
		if foreign {
			c.logger.Info("skipping delete of url outside bucket", "url", url)
			continue
		}
		if err != nil {
			c.logger.Warn("remote image delete failed", "url", url, "error", err)
			failed = append(failed, url)
		}
	}
	return failed
}

// Gone reports whether the bucket confirms url no longer has an object.
// Lookup errors and foreign urls report false.
func (c *RemoteCleaner) Gone(ctx context.Context, url string) bool {
	exists, err := c.store.Exists(ctx, url)
	if err != nil {
		if !errors.Is(err, infra.ErrForeignURL) {
			c.logger.Warn("remote image lookup failed", "url", url, "error", err)
		}
		return false
	}
	return !exists
}

// importError maps importer failures to the rejected-import AppErrors.
func importError(err error) error {
	var perr *importer.ParseError
	if errors.As(err, &perr) {
		return domain.ErrParse(perr.Reason, err)
	}
	var merr *importer.MappingError
	if errors.As(err, &merr) {
		return domain.ErrMapping(merr.Error(), err)
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if infra.IsUniqueViolation(err) {
		return domain.ErrConflict("a record with the same unique value already exists")
	}
	return domain.ErrInternal("import", err)
}

// names implements fuzzy.Source over a string slice.
type names []string

func (n names) String(i int) string { return n[i] }
func (n names) Len() int            { return len(n) }

// rankUsers orders users by fuzzy score against query. Users that do not
// match keep their relative order after the matches.
func rankUsers(query string, users []domain.User) []domain.User {
	src := make(names, len(users))
	for i, u := range users {
		src[i] = u.TrueName
	}
	matches := fuzzy.FindFrom(query, src)
	out := make([]domain.User, 0, len(users))
	used := make(map[int]bool, len(matches))
	for _, m := range matches {
		out = append(out, users[m.Index])
		used[m.Index] = true
	}
	for i, u := range users {
		if !used[i] {
			out = append(out, u)
		}
	}
	return out
}

func rankCharacters(query string, chars []domain.Character) []domain.Character {
	src := make(names, len(chars))
	for i, c := range chars {
		src[i] = c.Name
	}
	matches := fuzzy.FindFrom(query, src)
	out := make([]domain.Character, 0, len(chars))
	used := make(map[int]bool, len(matches))
	for _, m := range matches {
		out = append(out, chars[m.Index])
		used[m.Index] = true
	}
	for i, c := range chars {
		if !used[i] {
			out = append(out, c)
		}
	}
	return out
}

// allUsers pages through every user.
func allUsers(ctx context.Context, db repository.DBTX, users repository.UserRepository) ([]domain.User, error) {
	const batch = 100
	var out []domain.User
	for offset := 0; ; offset += batch {
		page, err := users.List(ctx, db, batch, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < batch {
			return out, nil
		}
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
