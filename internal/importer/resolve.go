package importer

import (
	"context"
	"fmt"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/repository"
)

// Resolver turns author names into alias ids according to an admin mapping.
type Resolver struct {
	users   repository.UserRepository
	aliases repository.AliasRepository
}

// NewResolver creates a Resolver.
func NewResolver(users repository.UserRepository, aliases repository.AliasRepository) *Resolver {
	return &Resolver{users: users, aliases: aliases}
}

// Resolve returns an alias id for every name. Each distinct name is resolved
// once; repeated names reuse the first result. All writes go through db, so
// a failure part way leaves nothing behind once the caller rolls back.
func (r *Resolver) Resolve(ctx context.Context, db repository.DBTX, names []string, mapping Mapping) (map[string]int64, error) {
	resolved := make(map[string]int64, len(names))
	for _, name := range names {
		if _, ok := resolved[name]; ok {
			continue
		}
		raw, ok := mapping[name]
		if !ok {
			return nil, &MappingError{Author: name, Reason: "no mapping choice supplied"}
		}
		choice, err := ParseChoice(raw)
		if err != nil {
			return nil, &MappingError{Author: name, Choice: raw, Reason: err.Error()}
		}

		var aliasID int64
		if choice.New {
			aliasID, err = r.createUserWithAlias(ctx, db, name)
		} else {
			aliasID, err = r.attachToUser(ctx, db, name, choice.UserID)
		}
		if err != nil {
			return nil, err
		}
		resolved[name] = aliasID
	}
	return resolved, nil
}

func (r *Resolver) createUserWithAlias(ctx context.Context, db repository.DBTX, name string) (int64, error) {
	if err := domain.ValidateTrueName(name); err != nil {
		return 0, &MappingError{Author: name, Choice: ChoiceNew, Reason: err.Error()}
	}
	user := &domain.User{TrueName: name}
	if err := r.users.Create(ctx, db, user); err != nil {
		return 0, fmt.Errorf("create user %q: %w", name, err)
	}
	alias := &domain.Alias{Name: name, UserID: &user.ID}
	if err := r.aliases.Create(ctx, db, alias); err != nil {
		return 0, fmt.Errorf("create alias %q: %w", name, err)
	}
	return alias.ID, nil
}

func (r *Resolver) attachToUser(ctx context.Context, db repository.DBTX, name string, userID int64) (int64, error) {
	user, err := r.users.FindByID(ctx, db, userID)
	if err != nil {
		return 0, fmt.Errorf("find user %d: %w", userID, err)
	}
	if user == nil {
		return 0, &MappingError{Author: name, Choice: fmt.Sprint(userID), Reason: "user does not exist"}
	}

	existing, err := r.aliases.FindByNameAndUser(ctx, db, name, userID)
	if err != nil {
		return 0, fmt.Errorf("find alias %q: %w", name, err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	if err := domain.ValidateAliasName(name); err != nil {
		return 0, &MappingError{Author: name, Choice: fmt.Sprint(userID), Reason: err.Error()}
	}
	alias := &domain.Alias{Name: name, UserID: &userID}
	if err := r.aliases.Create(ctx, db, alias); err != nil {
		return 0, fmt.Errorf("create alias %q: %w", name, err)
	}
	return alias.ID, nil
}
