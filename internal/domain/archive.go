package domain

import (
	"fmt"
	"time"
)

// PageType tags a page as a caption or a drawing.
type PageType string

const (
	PageText  PageType = "text"
	PageImage PageType = "image"
)

// Valid reports whether t is a known page type.
func (t PageType) Valid() bool {
	return t == PageText || t == PageImage
}

// DefaultGamePreview is served when a game has neither an override nor an image page.
const DefaultGamePreview = "/static/default_game.png"

// User is a real person, identified by a unique true name.
type User struct {
	ID          int64   `json:"id"`
	TrueName    string  `json:"true_name"`
	Description *string `json:"description,omitempty"`
}

// Alias is a pen name a user wrote under. UserID is nil once the user is deleted.
type Alias struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UserID *int64 `json:"user_id,omitempty"`
}

// Game is one game-night event.
type Game struct {
	ID               int64     `json:"id"`
	Date             time.Time `json:"date"`
	Title            *string   `json:"title,omitempty"`
	OverrideImageURL *string   `json:"override_image_url,omitempty"`
}

// DisplayTitle returns the title, or a date-derived label for untitled games.
func (g Game) DisplayTitle() string {
	if g.Title != nil && *g.Title != "" {
		return *g.Title
	}
	return fmt.Sprintf("Game Night %s", g.Date.Format("01/02/2006"))
}

// Book is one comic chain within a game.
type Book struct {
	ID     int64   `json:"id"`
	GameID int64   `json:"game_id"`
	Title  *string `json:"title,omitempty"`
}

// Page is one contribution in a book. Exactly one of ContentText and
// ContentURL is set, depending on Type.
type Page struct {
	ID          int64    `json:"id"`
	BookID      int64    `json:"book_id"`
	AliasID     *int64   `json:"alias_id,omitempty"`
	Sequence    int      `json:"sequence"`
	Type        PageType `json:"type"`
	ContentText *string  `json:"content_text,omitempty"`
	ContentURL  *string  `json:"content_url,omitempty"`
}

// NewTextPage builds a caption page.
func NewTextPage(bookID int64, aliasID *int64, sequence int, text string) Page {
	return Page{BookID: bookID, AliasID: aliasID, Sequence: sequence, Type: PageText, ContentText: &text}
}

// NewImagePage builds a drawing page.
func NewImagePage(bookID int64, aliasID *int64, sequence int, url string) Page {
	return Page{BookID: bookID, AliasID: aliasID, Sequence: sequence, Type: PageImage, ContentURL: &url}
}

// IsImage reports whether the page is a drawing with a stored URL.
func (p Page) IsImage() bool {
	return p.Type == PageImage && p.ContentURL != nil
}

// Character is a recurring visual motif that can be tagged on pages.
type Character struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

// AdminKey is a named admin credential. Only the hash is stored.
type AdminKey struct {
	ID        int64     `json:"id"`
	KeyName   string    `json:"key_name"`
	Hash      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyChallenge pins one page as the panel of the day.
type DailyChallenge struct {
	ID     int64     `json:"id"`
	Date   time.Time `json:"date"`
	PageID int64     `json:"page_id"`
}

// OrphanUpload is an uploaded object whose import never committed.
type OrphanUpload struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
