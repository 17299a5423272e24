package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength  = 100
	MaxTitleLength = 200
	MaxURLLength   = 200
	MinAdminKeyLen = 8

	// MaxFolderLength bounds the bucket folder of uploaded panels.
	MaxFolderLength = 40
)

// ValidateTrueName checks a user's canonical name.
func ValidateTrueName(name string) error {
	return validateName("true name", name)
}

// ValidateAliasName checks a pen name.
func ValidateAliasName(name string) error {
	return validateName("alias name", name)
}

// ValidateCharacterName checks a character's name.
func ValidateCharacterName(name string) error {
	return validateName("character name", name)
}

func validateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%s exceeds %d characters", field, MaxNameLength)
	}
	return nil
}

// ValidateTitle checks an optional game or book title.
func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title exceeds %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateFolder checks an upload folder: empty, or slash-separated segments
// of ASCII letters, digits, '-' and '_'.
func ValidateFolder(folder string) error {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return nil
	}
	if len(folder) > MaxFolderLength {
		return fmt.Errorf("folder exceeds %d characters", MaxFolderLength)
	}
	for _, seg := range strings.Split(folder, "/") {
		if seg == "" {
			return fmt.Errorf("folder %q has an empty segment", folder)
		}
		for _, r := range seg {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
				return fmt.Errorf("folder %q may only contain letters, digits, '-', '_' and '/'", folder)
			}
		}
	}
	return nil
}

// ValidateURL checks a stored image URL.
func ValidateURL(url string) error {
	if url == "" {
		return fmt.Errorf("url is required")
	}
	if len(url) > MaxURLLength {
		return fmt.Errorf("url exceeds %d characters", MaxURLLength)
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "/") {
		return fmt.Errorf("url must be absolute or site-relative")
	}
	return nil
}

// ValidatePage enforces the text/image content exclusivity.
func ValidatePage(p Page) error {
	if p.Sequence < 1 {
		return fmt.Errorf("sequence must be positive, got %d", p.Sequence)
	}
	switch p.Type {
	case PageText:
		if p.ContentText == nil || p.ContentURL != nil {
			return fmt.Errorf("text page needs content_text and no content_url")
		}
	case PageImage:
		if p.ContentURL == nil || p.ContentText != nil {
			return fmt.Errorf("image page needs content_url and no content_text")
		}
		return ValidateURL(*p.ContentURL)
	default:
		return fmt.Errorf("invalid page type: %q", p.Type)
	}
	return nil
}

// ValidateAdminKey checks a plaintext admin key before hashing.
func ValidateAdminKey(key string) error {
	if len(key) < MinAdminKeyLen {
		return fmt.Errorf("admin key must be at least %d characters", MinAdminKeyLen)
	}
	return nil
}
