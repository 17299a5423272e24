package importer

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// buildExport renders an export with one article per entry in panels, each
// with that many alternating text/image sections.
func buildExport(heading string, panels []int) string {
	var sb strings.Builder
	sb.WriteString("<html><body><h1>" + heading + "</h1>")
	for i, n := range panels {
		fmt.Fprintf(&sb, "<article><h2>Comic %d</h2>", i+1)
		for j := 1; j <= n; j++ {
			fmt.Fprintf(&sb, "<section><h3>Page %d, Player%d:</h3>", j, j)
			if j%2 == 0 {
				fmt.Fprintf(&sb, `<img src="data:image/png;base64,%s">`, tinyPNG)
			} else {
				fmt.Fprintf(&sb, "<h4>caption %d</h4>", j)
			}
			sb.WriteString("</section>")
		}
		sb.WriteString("</article>")
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func TestParseBookAndPageCounts(t *testing.T) {
	tests := []struct {
		name   string
		panels []int
	}{
		{"single comic", []int{3}},
		{"several comics", []int{1, 4, 2}},
		{"empty comic", []int{0, 2}},
		{"no comics", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game, err := Parse(strings.NewReader(buildExport("Broken Picturephone - 03/20/2025, 20:00", tt.panels)))
			require.NoError(t, err)
			require.Len(t, game.Books, len(tt.panels))

			for i, n := range tt.panels {
				book := game.Books[i]
				assert.Equal(t, fmt.Sprintf("Comic %d", i+1), book.Title)
				require.Len(t, book.Pages, n)
				for j, p := range book.Pages {
					assert.Equal(t, j+1, p.Sequence)
				}
			}
		})
	}
}

func TestParseTruncatesLongComicTitles(t *testing.T) {
	long := strings.Repeat("é", 250)
	doc := "<html><body><h1>Broken Picturephone - 03/20/2025, 20:00</h1>" +
		"<article><h2>" + long + "</h2><section><h3>Page 1, Alice:</h3><h4>hi</h4></section></article>" +
		"</body></html>"

	game, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, game.Books, 1)

	title := game.Books[0].Title
	assert.Equal(t, domain.MaxTitleLength, utf8.RuneCountInString(title))
	assert.Equal(t, strings.Repeat("é", domain.MaxTitleLength), title)
	require.NoError(t, domain.ValidateTitle(title))
	assert.Len(t, game.Books[0].Pages, 1)
}

func TestParsePizzaCat(t *testing.T) {
	f, err := os.Open("testdata/pizza_cat.html")
	require.NoError(t, err)
	defer f.Close()

	game, err := Parse(f)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC), game.Date)
	assert.Equal(t, time.Date(2026, 1, 17, 21, 5, 0, 0, time.UTC), game.PlayedAt)
	assert.False(t, game.DateAmbiguous)

	require.Len(t, game.Books, 1)
	book := game.Books[0]
	assert.Equal(t, "Pizza Cat", book.Title)
	require.Len(t, book.Pages, 2)

	assert.Equal(t, ParsedPage{Sequence: 1, Type: domain.PageText, Content: "A cat eating pizza", Author: "Bob"}, book.Pages[0])
	assert.Equal(t, ParsedPage{Sequence: 2, Type: domain.PageImage, Content: tinyPNG, Author: "Alice"}, book.Pages[1])

	assert.Equal(t, []string{"Bob", "Alice"}, game.Authors())
	assert.Equal(t, 2, game.PageCount())
	assert.Equal(t, 1, game.ImageCount())
}

func TestParseMissingDate(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no h1", "<html><body><article><h2>x</h2></article></body></html>"},
		{"h1 without date", "<html><body><h1>Broken Picturephone</h1></body></html>"},
		{"unparseable date", "<html><body><h1>Broken Picturephone - 13/13/2025, 10:00</h1></body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game, err := Parse(strings.NewReader(tt.html))
			assert.Nil(t, game)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseDateConventions(t *testing.T) {
	tests := []struct {
		heading   string
		want      time.Time
		ambiguous bool
	}{
		{"Broken Picturephone - 12/25/2024, 19:30", time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), false},
		{"Broken Picturephone - 25/12/2024, 19:30", time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), false},
		{"Broken Picturephone - 03/04/2025, 19:30", time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), true},
		{"Broken Picturephone - 05/05/2025 19:30", time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC), false},
		{"Broken Picturephone-1/7/2025,9:15", time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			game, err := Parse(strings.NewReader(buildExport(tt.heading, nil)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, game.Date)
			assert.Equal(t, tt.ambiguous, game.DateAmbiguous)
		})
	}
}

func TestParseDegradesGracefully(t *testing.T) {
	html := `<html><body><h1>Broken Picturephone - 06/30/2025, 22:00</h1>
	<article><p>no heading, skipped</p><section><h3>Page 1, Ghost:</h3></section></article>
	<article>
	  <h2> Lost Dog </h2>
	  <section><h3>Page 1 by nobody</h3><h4>Where is my dog</h4></section>
	  <section><p>no h3, skipped</p></section>
	  <section><h3>Page 3, Carol:</h3></section>
	  <section><h3>Page 4, Dave:</h3><img src="https://example.com/cat.png"><h4>fallback</h4></section>
	  <section><h3>Page 5, :</h3><h4>blank author</h4></section>
	</article></body></html>`

	game, err := Parse(strings.NewReader(html))
	require.NoError(t, err)
	require.Len(t, game.Books, 1)

	book := game.Books[0]
	assert.Equal(t, "Lost Dog", book.Title)
	require.Len(t, book.Pages, 4)

	assert.Equal(t, ParsedPage{Sequence: 1, Type: domain.PageText, Content: "Where is my dog", Author: UnknownAuthor}, book.Pages[0])
	assert.Equal(t, ParsedPage{Sequence: 3, Type: domain.PageText, Content: "", Author: "Carol"}, book.Pages[1])
	assert.Equal(t, ParsedPage{Sequence: 4, Type: domain.PageText, Content: "fallback", Author: "Dave"}, book.Pages[2])
	assert.Equal(t, ParsedPage{Sequence: 5, Type: domain.PageText, Content: "blank author", Author: UnknownAuthor}, book.Pages[3])
}
