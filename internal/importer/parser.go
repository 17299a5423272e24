package importer

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bpparchive/archive/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// UnknownAuthor is used when a panel heading carries no author.
const UnknownAuthor = "Unknown"

const pngDataPrefix = "data:image/png;base64,"

var (
	headingDateRe = regexp.MustCompile(`Broken Picturephone\s*-\s*([\d/]+),?\s*([\d:]+)`)
	panelAuthorRe = regexp.MustCompile(`Page \d+,\s*(.*):`)
)

// ParsedGame is the language-neutral result of parsing one exported session.
type ParsedGame struct {
	Date          time.Time    `json:"date"`
	PlayedAt      time.Time    `json:"played_at"`
	RawDate       string       `json:"raw_date"`
	DateAmbiguous bool         `json:"date_ambiguous"`
	Books         []ParsedBook `json:"books"`
}

// ParsedBook is one comic chain.
type ParsedBook struct {
	Title string       `json:"title"`
	Pages []ParsedPage `json:"pages"`
}

// ParsedPage is one panel. Content holds the caption for text pages and the
// base64 PNG payload (without the data: prefix) for image pages.
type ParsedPage struct {
	Sequence int             `json:"sequence"`
	Type     domain.PageType `json:"type"`
	Content  string          `json:"-"`
	Author   string          `json:"author"`
}

// Authors returns the distinct author names in first-encounter order.
func (g *ParsedGame) Authors() []string {
	seen := make(map[string]bool)
	var names []string
	for _, b := range g.Books {
		for _, p := range b.Pages {
			if !seen[p.Author] {
				seen[p.Author] = true
				names = append(names, p.Author)
			}
		}
	}
	return names
}

// PageCount returns the total number of pages across all books.
func (g *ParsedGame) PageCount() int {
	n := 0
	for _, b := range g.Books {
		n += len(b.Pages)
	}
	return n
}

// ImageCount returns the number of image pages.
func (g *ParsedGame) ImageCount() int {
	n := 0
	for _, b := range g.Books {
		for _, p := range b.Pages {
			if p.Type == domain.PageImage {
				n++
			}
		}
	}
	return n
}

// Parse reads an exported Broken Picturephone HTML document.
//
// The only hard failure is a missing or malformed date heading. Missing
// sub-elements degrade to empty content or the Unknown author.
func Parse(r io.Reader) (*ParsedGame, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("read html: %v", err)}
	}

	h1 := findFirst(doc, atom.H1)
	if h1 == nil {
		return nil, &ParseError{Reason: "no <h1> heading found"}
	}
	m := headingDateRe.FindStringSubmatch(textContent(h1))
	if m == nil {
		return nil, &ParseError{Reason: "no date found in heading"}
	}

	rawDate := strings.ReplaceAll(m[1], ",", "")
	date, ambiguous, err := parseGameDate(rawDate)
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	game := &ParsedGame{
		Date:          date,
		PlayedAt:      date,
		RawDate:       rawDate,
		DateAmbiguous: ambiguous,
	}
	if clock, err := time.Parse("15:04", m[2]); err == nil {
		game.PlayedAt = date.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
	}

	for _, article := range findAll(doc, atom.Article) {
		h2 := findFirst(article, atom.H2)
		if h2 == nil {
			continue
		}
		book := ParsedBook{Title: truncateRunes(strings.TrimSpace(textContent(h2)), domain.MaxTitleLength)}

		for i, section := range findAll(article, atom.Section) {
			h3 := findFirst(section, atom.H3)
			if h3 == nil {
				continue
			}
			book.Pages = append(book.Pages, parsePanel(section, h3, i+1))
		}
		game.Books = append(game.Books, book)
	}

	return game, nil
}

func parsePanel(section, h3 *html.Node, sequence int) ParsedPage {
	page := ParsedPage{Sequence: sequence, Author: UnknownAuthor}
	if m := panelAuthorRe.FindStringSubmatch(textContent(h3)); m != nil {
		if author := strings.TrimSpace(m[1]); author != "" {
			page.Author = author
		}
	}

	if img := findFirst(section, atom.Img); img != nil {
		if src := attr(img, "src"); strings.HasPrefix(src, pngDataPrefix) {
			page.Type = domain.PageImage
			page.Content = strings.TrimPrefix(src, pngDataPrefix)
			return page
		}
	}

	page.Type = domain.PageText
	if h4 := findFirst(section, atom.H4); h4 != nil {
		page.Content = strings.TrimSpace(textContent(h4))
	}
	return page
}

// parseGameDate parses month-first and falls back to day-first. ambiguous is
// true when both readings are valid and name different days, in which case
// the month-first reading is returned.
func parseGameDate(raw string) (date time.Time, ambiguous bool, err error) {
	monthFirst, mfErr := time.Parse("1/2/2006", raw)
	dayFirst, dfErr := time.Parse("2/1/2006", raw)

	switch {
	case mfErr == nil:
		return monthFirst, dfErr == nil && !dayFirst.Equal(monthFirst), nil
	case dfErr == nil:
		return dayFirst, false, nil
	default:
		return time.Time{}, false, fmt.Errorf("unparseable date %q", raw)
	}
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
