package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bpparchive/archive/internal/domain"
)

// FieldType is the wire type of an editable record field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldText   FieldType = "text"
	FieldInt    FieldType = "int"
	FieldDate   FieldType = "date"
	FieldURL    FieldType = "url"
	FieldEnum   FieldType = "enum"
)

// Field describes one editable column of a record kind.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Nullable bool      `json:"nullable"`
	Enum     []string  `json:"enum,omitempty"`
}

// RecordFields is a partial record as submitted by an admin.
type RecordFields map[string]json.RawMessage

// fieldSet decodes RecordFields against descriptors.
type fieldSet struct {
	fields RecordFields
	byName map[string]Field
}

func newFieldSet(descriptors []Field, fields RecordFields, creating bool) (*fieldSet, error) {
	fs := &fieldSet{fields: fields, byName: make(map[string]Field, len(descriptors))}
	for _, f := range descriptors {
		fs.byName[f.Name] = f
	}

	var unknown []string
	for name := range fields {
		if _, ok := fs.byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, domain.ErrValidation("unknown fields: " + strings.Join(unknown, ", "))
	}

	if creating {
		for _, f := range descriptors {
			if _, ok := fields[f.Name]; f.Required && !ok {
				return nil, domain.ErrValidation(fmt.Sprintf("%s is required", f.Name))
			}
		}
	}
	return fs, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// lookup returns the raw value and whether it is present. Null on a
// non-nullable field is rejected.
func (fs *fieldSet) lookup(name string) (json.RawMessage, bool, error) {
	raw, ok := fs.fields[name]
	if !ok {
		return nil, false, nil
	}
	if isNull(raw) && !fs.byName[name].Nullable {
		return nil, false, domain.ErrValidation(fmt.Sprintf("%s cannot be null", name))
	}
	return raw, true, nil
}

func (fs *fieldSet) decodeErr(name string, want FieldType) error {
	return domain.ErrValidation(fmt.Sprintf("%s must be a %s", name, want))
}

func (fs *fieldSet) str(name string, dst *string) error {
	raw, ok, err := fs.lookup(name)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fs.decodeErr(name, fs.byName[name].Type)
	}
	return fs.checkEnum(name, *dst)
}

func (fs *fieldSet) optStr(name string, dst **string) error {
	raw, ok, err := fs.lookup(name)
	if err != nil || !ok {
		return err
	}
	if isNull(raw) {
		*dst = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fs.decodeErr(name, fs.byName[name].Type)
	}
	*dst = &s
	return nil
}

func (fs *fieldSet) num64(name string, dst *int64) error {
	raw, ok, err := fs.lookup(name)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fs.decodeErr(name, FieldInt)
	}
	return nil
}

func (fs *fieldSet) num(name string, dst *int) error {
	raw, ok, err := fs.lookup(name)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fs.decodeErr(name, FieldInt)
	}
	return nil
}

func (fs *fieldSet) optInt64(name string, dst **int64) error {
	raw, ok, err := fs.lookup(name)
	if err != nil || !ok {
		return err
	}
	if isNull(raw) {
		*dst = nil
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return fs.decodeErr(name, FieldInt)
	}
	*dst = &n
	return nil
}

func (fs *fieldSet) date(name string, dst *time.Time) error {
	var s string
	if _, ok := fs.fields[name]; !ok {
		return nil
	}
	if err := fs.str(name, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return domain.ErrValidation(fmt.Sprintf("%s must be a date (YYYY-MM-DD)", name))
	}
	*dst = t
	return nil
}

func (fs *fieldSet) checkEnum(name, value string) error {
	f := fs.byName[name]
	if f.Type != FieldEnum {
		return nil
	}
	for _, allowed := range f.Enum {
		if value == allowed {
			return nil
		}
	}
	return domain.ErrValidation(fmt.Sprintf("%s must be one of %s", name, strings.Join(f.Enum, ", ")))
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// validation wraps a validator error as a 400.
func validation(err error) error {
	if err == nil {
		return nil
	}
	return domain.ErrValidation(err.Error())
}

func validateOptURL(url *string) error {
	if url == nil {
		return nil
	}
	return domain.ValidateURL(*url)
}

func validateOptTitle(title *string) error {
	if title == nil {
		return nil
	}
	return domain.ValidateTitle(*title)
}
