package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/repository"
	"github.com/bpparchive/archive/internal/service"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo users, characters and games into an empty archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := openBackend(ctx, slog.Default(), false)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := seedDemo(ctx, b.pool, b.repos, time.Now().UTC()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "archive seeded")
			return nil
		},
	}
}

var errNotEmpty = errors.New("archive already has users; seed only runs on an empty database")

func strPtr(s string) *string { return &s }

type seedPage struct {
	alias   string
	text    string
	url     string
	tagging []string
}

type seedBook struct {
	title string
	pages []seedPage
}

type seedGame struct {
	daysAgo int
	title   string
	books   []seedBook
}

var (
	seedUsers = []struct {
		name, description string
		aliases           []string
	}{
		{"Alice_Artist", "Loves drawing cats.", []string{"Alice", "Picasso_V2"}},
		{"Bob_Builder", "Terrible at drawing, great at captions.", []string{"Bob", "BobbyB"}},
		{"Charlie_Chaos", "Intentionally ruins the chain.", []string{"ChaosMaster"}},
	}

	seedCharacters = []domain.Character{
		{Name: "Stickman Steve", Description: strPtr("A generic stickman who appears often."), ImageURL: strPtr("https://placehold.co/100x100?text=Steve")},
		{Name: "Grumpy Cat", Description: strPtr("A cat that hates everything."), ImageURL: strPtr("https://placehold.co/100x100?text=Cat")},
	}

	seedGames = []seedGame{
		{daysAgo: 7, title: "Friday Night Fun", books: []seedBook{
			{title: "The Pizza Cat", pages: []seedPage{
				{alias: "Bob", text: "A grumpy cat eating a slice of pepperoni pizza."},
				{alias: "Alice", url: "https://placehold.co/400x300?text=Cat+Eating+Pizza", tagging: []string{"Grumpy Cat"}},
				{alias: "ChaosMaster", text: "A tiger choking on a frisbee."},
				{alias: "Bob", url: "https://placehold.co/400x300?text=Tiger+Frisbee"},
			}},
			{title: "Alien Invasion", pages: []seedPage{
				{alias: "ChaosMaster", text: "Aliens landing on the white house."},
				{alias: "Picasso_V2", url: "https://placehold.co/400x300?text=UFO+Landing", tagging: []string{"Stickman Steve"}},
			}},
		}},
		{daysAgo: 1, books: []seedBook{
			{pages: []seedPage{
				{alias: "BobbyB", text: "A giant banana playing guitar."},
				{alias: "Alice", url: "https://placehold.co/400x300?text=Musical+Banana"},
			}},
		}},
	}
)

// seedDemo writes the demo archive in one transaction.
func seedDemo(ctx context.Context, pool repository.TxBeginner, repos service.Repos, now time.Time) error {
	n, err := repos.Users.Count(ctx, pool)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return errNotEmpty
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	aliases := make(map[string]int64)
	for _, su := range seedUsers {
		user := &domain.User{TrueName: su.name, Description: strPtr(su.description)}
		if err := repos.Users.Create(ctx, tx, user); err != nil {
			return fmt.Errorf("create user %s: %w", su.name, err)
		}
		for _, name := range su.aliases {
			alias := &domain.Alias{Name: name, UserID: &user.ID}
			if err := repos.Aliases.Create(ctx, tx, alias); err != nil {
				return fmt.Errorf("create alias %s: %w", name, err)
			}
			aliases[name] = alias.ID
		}
	}

	characters := make(map[string]int64)
	for _, c := range seedCharacters {
		c := c
		if err := repos.Characters.Create(ctx, tx, &c); err != nil {
			return fmt.Errorf("create character %s: %w", c.Name, err)
		}
		characters[c.Name] = c.ID
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, sg := range seedGames {
		game := &domain.Game{Date: today.AddDate(0, 0, -sg.daysAgo)}
		if sg.title != "" {
			game.Title = strPtr(sg.title)
		}
		if err := repos.Games.Create(ctx, tx, game); err != nil {
			return fmt.Errorf("create game: %w", err)
		}

		for _, sb := range sg.books {
			book := &domain.Book{GameID: game.ID}
			if sb.title != "" {
				book.Title = strPtr(sb.title)
			}
			if err := repos.Books.Create(ctx, tx, book); err != nil {
				return fmt.Errorf("create book: %w", err)
			}

			for i, sp := range sb.pages {
				aliasID := aliases[sp.alias]
				var page domain.Page
				if sp.url != "" {
					page = domain.NewImagePage(book.ID, &aliasID, i+1, sp.url)
				} else {
					page = domain.NewTextPage(book.ID, &aliasID, i+1, sp.text)
				}
				if err := repos.Pages.Create(ctx, tx, &page); err != nil {
					return fmt.Errorf("create page: %w", err)
				}
				for _, name := range sp.tagging {
					if _, err := repos.Characters.Tag(ctx, tx, page.ID, characters[name]); err != nil {
						return fmt.Errorf("tag %s: %w", name, err)
					}
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
