package importer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ChoiceNew asks the resolver to create a fresh user for an author name.
const ChoiceNew = "new"

// Choice is one admin decision for an author name: create a new user, or
// attach the name to an existing user id.
type Choice struct {
	New    bool
	UserID int64
}

// ParseChoice accepts "new" or a positive decimal user id.
func ParseChoice(raw string) (Choice, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, ChoiceNew) {
		return Choice{New: true}, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Choice{}, fmt.Errorf("choice must be %q or a user id", ChoiceNew)
	}
	return Choice{UserID: id}, nil
}

func (c Choice) String() string {
	if c.New {
		return ChoiceNew
	}
	return strconv.FormatInt(c.UserID, 10)
}

// Mapping holds the raw admin choice per author name.
type Mapping map[string]string

// Check verifies every author has a syntactically valid choice. Existence of
// referenced users is only known inside the import transaction.
func (m Mapping) Check(authors []string) error {
	for _, name := range authors {
		raw, ok := m[name]
		if !ok {
			return &MappingError{Author: name, Reason: "no mapping choice supplied"}
		}
		if _, err := ParseChoice(raw); err != nil {
			return &MappingError{Author: name, Choice: raw, Reason: err.Error()}
		}
	}
	return nil
}

// AllNew maps every author to a new user.
func AllNew(authors []string) Mapping {
	m := make(Mapping, len(authors))
	for _, name := range authors {
		m[name] = ChoiceNew
	}
	return m
}

// MappingFromJSON decodes a JSON object whose values are "new", numeric
// strings, or bare numbers.
func MappingFromJSON(raw []byte) (Mapping, error) {
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}

	m := make(Mapping, len(values))
	for name, v := range values {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			m[name] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return nil, &MappingError{Author: name, Choice: string(v), Reason: "choice must be a string or number"}
		}
		m[name] = n.String()
	}
	return m, nil
}
