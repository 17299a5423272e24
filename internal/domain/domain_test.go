package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Validator Tests ---

func TestValidateTrueName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{"simple", "Alice_Artist", false, ""},
		{"unicode", "Zoë", false, ""},
		{"max length", strings.Repeat("a", MaxNameLength), false, ""},
		{"empty", "", true, "true name is required"},
		{"whitespace", "   ", true, "true name is required"},
		{"too long", strings.Repeat("a", MaxNameLength+1), true, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTrueName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidatePage(t *testing.T) {
	text := "A cat eating pizza"
	url := "https://f005.backblazeb2.com/file/bpp/panels/x.png"

	tests := []struct {
		name    string
		page    Page
		wantErr bool
	}{
		{"text page", NewTextPage(1, nil, 1, text), false},
		{"image page", NewImagePage(1, nil, 2, url), false},
		{"empty caption allowed", NewTextPage(1, nil, 1, ""), false},
		{"text without content", Page{Sequence: 1, Type: PageText}, true},
		{"text with url", Page{Sequence: 1, Type: PageText, ContentText: &text, ContentURL: &url}, true},
		{"image without url", Page{Sequence: 1, Type: PageImage}, true},
		{"image with text", Page{Sequence: 1, Type: PageImage, ContentText: &text, ContentURL: &url}, true},
		{"zero sequence", NewTextPage(1, nil, 0, text), true},
		{"unknown type", Page{Sequence: 1, Type: "drawing", ContentURL: &url}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePage(tt.page)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://placehold.co/400x300?text=Cat"))
	assert.NoError(t, ValidateURL(DefaultGamePreview))
	assert.Error(t, ValidateURL(""))
	assert.Error(t, ValidateURL("ftp://example.com/x.png"))
	assert.Error(t, ValidateURL("https://"+strings.Repeat("x", MaxURLLength)))
}

func TestValidateFolder(t *testing.T) {
	assert.NoError(t, ValidateFolder(""))
	assert.NoError(t, ValidateFolder("panels"))
	assert.NoError(t, ValidateFolder("/2026/game-night_01/"))
	assert.NoError(t, ValidateFolder(strings.Repeat("x", MaxFolderLength)))

	assert.ErrorContains(t, ValidateFolder(strings.Repeat("x", MaxFolderLength+1)), "exceeds")
	assert.Error(t, ValidateFolder("../other-bucket"))
	assert.Error(t, ValidateFolder("a//b"))
	assert.Error(t, ValidateFolder("with space"))
	assert.Error(t, ValidateFolder("panels?x=1"))
}

func TestValidateAdminKey(t *testing.T) {
	assert.NoError(t, ValidateAdminKey("devkey123"))
	assert.Error(t, ValidateAdminKey("short"))
}

// --- Model Tests ---

func TestGameDisplayTitle(t *testing.T) {
	date := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)

	untitled := Game{Date: date}
	assert.Equal(t, "Game Night 01/17/2026", untitled.DisplayTitle())

	empty := ""
	assert.Equal(t, "Game Night 01/17/2026", Game{Date: date, Title: &empty}.DisplayTitle())

	title := "Friday Night Fun"
	assert.Equal(t, "Friday Night Fun", Game{Date: date, Title: &title}.DisplayTitle())
}

func TestPageTypeValid(t *testing.T) {
	assert.True(t, PageText.Valid())
	assert.True(t, PageImage.Valid())
	assert.False(t, PageType("description").Valid())
}

func TestAdminKeyHashNotSerialized(t *testing.T) {
	raw, err := json.Marshal(AdminKey{ID: 1, KeyName: "Master", Hash: "$2a$10$secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), "Master")
}

// --- Error Tests ---

func TestAppError(t *testing.T) {
	cause := errors.New("boom")
	err := ErrInternal("insert page", cause)

	assert.Equal(t, "INTERNAL_ERROR: insert page: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 500, err.Status)

	nf := ErrNotFound("game", "42")
	assert.Equal(t, "NOT_FOUND: game 42 not found", nf.Error())
	assert.Equal(t, 404, nf.Status)

	assert.Equal(t, 422, ErrParse("no date heading", nil).Status)
	assert.Equal(t, 422, ErrMapping("author \"Bob\": no mapping choice supplied", nil).Status)
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("import: %w", ErrMapping("bad choice", nil))
	assert.Equal(t, CodeMapping, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestNewOutboxDraft(t *testing.T) {
	draft, err := NewOutboxDraft(AggregateGame, "7", EventGameImported, map[string]int{"books": 3})
	require.NoError(t, err)

	assert.Equal(t, AggregateGame, draft.AggregateType)
	assert.Equal(t, "7", draft.AggregateID)
	assert.JSONEq(t, `{"books":3}`, string(draft.Payload))
	assert.False(t, draft.OccurredAt.IsZero())
}
