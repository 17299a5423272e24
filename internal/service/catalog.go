package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/repository"
)

// CatalogService serves the read-only browsing views.
type CatalogService struct {
	db    repository.DBTX
	repos Repos
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(db repository.DBTX, repos Repos) *CatalogService {
	return &CatalogService{db: db, repos: repos}
}

const (
	homeBooks      = 5
	homeCharacters = 5
	searchLimit    = 50
)

// BookCard is a book summary: its opening caption and first drawing.
type BookCard struct {
	domain.Book
	Caption  *string `json:"caption,omitempty"`
	CoverURL *string `json:"cover_url,omitempty"`
}

// HomeView is the landing page.
type HomeView struct {
	Books      []BookCard         `json:"books"`
	Characters []domain.Character `json:"characters"`
}

// SearchView holds search hits per record kind.
type SearchView struct {
	Query      string             `json:"query"`
	Books      []BookCard         `json:"books"`
	Characters []domain.Character `json:"characters"`
	Users      []domain.User      `json:"users"`
}

// GameView is a game with its books and participants.
type GameView struct {
	domain.Game
	DisplayTitle string                   `json:"display_title"`
	PreviewURL   string                   `json:"preview_url"`
	Books        []BookCard               `json:"books"`
	Participants []repository.Participant `json:"participants"`
}

// GameSummary is one row of the game list.
type GameSummary struct {
	domain.Game
	DisplayTitle string `json:"display_title"`
}

// GameList is one page of games, newest first.
type GameList struct {
	Games   []GameSummary `json:"games"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
	Total   int           `json:"total"`
}

// PageView is a page with its author and tagged characters.
type PageView struct {
	domain.Page
	Alias      *domain.Alias      `json:"alias,omitempty"`
	Author     *domain.User       `json:"author,omitempty"`
	Characters []domain.Character `json:"characters"`
}

// BookView is a book with its ordered pages.
type BookView struct {
	domain.Book
	Game  domain.Game `json:"game"`
	Pages []PageView  `json:"pages"`
}

// UserView is a user with aliases and drawings.
type UserView struct {
	domain.User
	Aliases  []domain.Alias `json:"aliases"`
	Drawings []domain.Page  `json:"drawings"`
}

// CharacterView is a character with the pages it appears on.
type CharacterView struct {
	domain.Character
	Pages []domain.Page `json:"pages"`
}

// Home returns the newest books and a handful of characters.
func (s *CatalogService) Home(ctx context.Context) (*HomeView, error) {
	books, err := s.repos.Books.Recent(ctx, s.db, homeBooks)
	if err != nil {
		return nil, domain.ErrInternal("recent books", err)
	}
	cards, err := s.bookCards(ctx, books)
	if err != nil {
		return nil, err
	}
	chars, err := s.repos.Characters.List(ctx, s.db, homeCharacters, 0)
	if err != nil {
		return nil, domain.ErrInternal("list characters", err)
	}
	return &HomeView{Books: cards, Characters: nonNil(chars)}, nil
}

// Search matches books by opening caption, characters by name and users by
// true name. An empty query matches nothing.
func (s *CatalogService) Search(ctx context.Context, query string) (*SearchView, error) {
	query = strings.TrimSpace(query)
	view := &SearchView{Query: query, Books: []BookCard{}, Characters: []domain.Character{}, Users: []domain.User{}}
	if query == "" {
		return view, nil
	}

	books, err := s.repos.Books.SearchByOpeningText(ctx, s.db, query, searchLimit)
	if err != nil {
		return nil, domain.ErrInternal("search books", err)
	}
	if view.Books, err = s.bookCards(ctx, books); err != nil {
		return nil, err
	}

	chars, err := s.repos.Characters.Search(ctx, s.db, query, searchLimit)
	if err != nil {
		return nil, domain.ErrInternal("search characters", err)
	}
	view.Characters = rankCharacters(query, chars)

	users, err := s.repos.Users.Search(ctx, s.db, query, searchLimit)
	if err != nil {
		return nil, domain.ErrInternal("search users", err)
	}
	view.Users = rankUsers(query, users)
	return view, nil
}

// Games lists games newest first. page is 1-based.
func (s *CatalogService) Games(ctx context.Context, page, perPage int) (*GameList, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	games, err := s.repos.Games.List(ctx, s.db, perPage, (page-1)*perPage)
	if err != nil {
		return nil, domain.ErrInternal("list games", err)
	}
	total, err := s.repos.Games.Count(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("count games", err)
	}

	list := &GameList{Games: make([]GameSummary, 0, len(games)), Page: page, PerPage: perPage, Total: total}
	for _, g := range games {
		list.Games = append(list.Games, GameSummary{Game: g, DisplayTitle: g.DisplayTitle()})
	}
	return list, nil
}

// Game returns one game with its books and the people who played.
func (s *CatalogService) Game(ctx context.Context, id int64) (*GameView, error) {
	game, err := s.repos.Games.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("find game", err)
	}
	if game == nil {
		return nil, domain.ErrNotFound("game", strconv.FormatInt(id, 10))
	}

	books, err := s.repos.Books.ListByGame(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("list books", err)
	}
	cards, err := s.bookCards(ctx, books)
	if err != nil {
		return nil, err
	}
	participants, err := s.repos.Users.ListByGame(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("list participants", err)
	}

	return &GameView{
		Game:         *game,
		DisplayTitle: game.DisplayTitle(),
		PreviewURL:   previewURL(*game, cards),
		Books:        cards,
		Participants: nonNil(participants),
	}, nil
}

// previewURL is the override, else the first drawing of the first book,
// else the default image.
func previewURL(game domain.Game, books []BookCard) string {
	if game.OverrideImageURL != nil && *game.OverrideImageURL != "" {
		return *game.OverrideImageURL
	}
	if len(books) > 0 && books[0].CoverURL != nil {
		return *books[0].CoverURL
	}
	return domain.DefaultGamePreview
}

// Book returns a book with pages in sequence order.
func (s *CatalogService) Book(ctx context.Context, id int64) (*BookView, error) {
	book, err := s.repos.Books.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("find book", err)
	}
	if book == nil {
		return nil, domain.ErrNotFound("book", strconv.FormatInt(id, 10))
	}
	game, err := s.repos.Games.FindByID(ctx, s.db, book.GameID)
	if err != nil || game == nil {
		return nil, domain.ErrInternal("find game of book", err)
	}
	pages, err := s.repos.Pages.ListByBook(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("list pages", err)
	}

	view := &BookView{Book: *book, Game: *game, Pages: make([]PageView, 0, len(pages))}
	aliases := map[int64]*domain.Alias{}
	users := map[int64]*domain.User{}
	for _, p := range pages {
		pv := PageView{Page: p}
		if p.AliasID != nil {
			if pv.Alias, err = s.cachedAlias(ctx, aliases, *p.AliasID); err != nil {
				return nil, err
			}
			if pv.Alias != nil && pv.Alias.UserID != nil {
				if pv.Author, err = s.cachedUser(ctx, users, *pv.Alias.UserID); err != nil {
					return nil, err
				}
			}
		}
		chars, err := s.repos.Characters.ListByPage(ctx, s.db, p.ID)
		if err != nil {
			return nil, domain.ErrInternal("list page characters", err)
		}
		pv.Characters = nonNil(chars)
		view.Pages = append(view.Pages, pv)
	}
	return view, nil
}

func (s *CatalogService) cachedAlias(ctx context.Context, cache map[int64]*domain.Alias, id int64) (*domain.Alias, error) {
	if a, ok := cache[id]; ok {
		return a, nil
	}
	a, err := s.repos.Aliases.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("find alias", err)
	}
	cache[id] = a
	return a, nil
}

func (s *CatalogService) cachedUser(ctx context.Context, cache map[int64]*domain.User, id int64) (*domain.User, error) {
	if u, ok := cache[id]; ok {
		return u, nil
	}
	u, err := s.repos.Users.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	cache[id] = u
	return u, nil
}

// User returns a user with their aliases and every page they drew.
func (s *CatalogService) User(ctx context.Context, id int64) (*UserView, error) {
	user, err := s.repos.Users.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", strconv.FormatInt(id, 10))
	}
	aliases, err := s.repos.Aliases.ListByUser(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("list aliases", err)
	}
	drawings, err := s.repos.Pages.ListImagesByUser(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("list drawings", err)
	}
	return &UserView{User: *user, Aliases: nonNil(aliases), Drawings: nonNil(drawings)}, nil
}

// Character returns a character with its tagged pages.
func (s *CatalogService) Character(ctx context.Context, id int64) (*CharacterView, error) {
	c, err := s.repos.Characters.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("find character", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound("character", strconv.FormatInt(id, 10))
	}
	pages, err := s.repos.Pages.ListByCharacter(ctx, s.db, id)
	if err != nil {
		return nil, domain.ErrInternal("list character pages", err)
	}
	return &CharacterView{Character: *c, Pages: nonNil(pages)}, nil
}

func (s *CatalogService) bookCards(ctx context.Context, books []domain.Book) ([]BookCard, error) {
	cards := make([]BookCard, 0, len(books))
	for _, b := range books {
		pages, err := s.repos.Pages.ListByBook(ctx, s.db, b.ID)
		if err != nil {
			return nil, domain.ErrInternal("list pages", err)
		}
		card := BookCard{Book: b}
		for _, p := range pages {
			if card.Caption == nil && p.Type == domain.PageText {
				card.Caption = p.ContentText
			}
			if card.CoverURL == nil && p.IsImage() {
				card.CoverURL = p.ContentURL
			}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
