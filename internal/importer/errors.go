package importer

import "fmt"

// ParseError reports an export that cannot be imported at all.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse import: %s", e.Reason)
}

// MappingError reports an author whose admin choice cannot be resolved.
type MappingError struct {
	Author string
	Choice string
	Reason string
}

func (e *MappingError) Error() string {
	if e.Choice == "" {
		return fmt.Sprintf("author %q: %s", e.Author, e.Reason)
	}
	return fmt.Sprintf("author %q (choice %q): %s", e.Author, e.Choice, e.Reason)
}
