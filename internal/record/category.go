// Package record defines the record categories and the immutable entry
// that gets appended to a category's remote log file.
package record

import (
	"fmt"
	"strings"

	"github.com/gea-smc/gea/internal/errors"
)

// Category is one of the fixed record kinds. The zero value is invalid.
type Category int

const (
	Article Category = iota + 1
	Thesis
	Conference
	Funding
)

// All lists every category in enumeration order. Ties in statistics are
// broken by this order.
var All = []Category{Article, Thesis, Conference, Funding}

var categoryKeys = map[Category]string{
	Article:    "article",
	Thesis:     "thesis",
	Conference: "conference",
	Funding:    "funding",
}

var categoryLabels = map[Category]string{
	Article:    "Artículo",
	Thesis:     "Tesis",
	Conference: "Congreso",
	Funding:    "Financiamiento",
}

// Short codes used by the capture forms and file naming of the first deployment.
var categoryCodes = map[Category]string{
	Article:    "art",
	Thesis:     "tes",
	Conference: "con",
	Funding:    "fin",
}

// String returns the config key of the category (e.g., "article").
func (c Category) String() string {
	if k, ok := categoryKeys[c]; ok {
		return k
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Label returns the human-readable name shown to operators and used in notifications.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return c.String()
}

// Code returns the three-letter short code.
func (c Category) Code() string {
	return categoryCodes[c]
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryKeys[c]
	return ok
}

// Keys returns the config keys of all categories in enumeration order.
func Keys() []string {
	keys := make([]string, len(All))
	for i, c := range All {
		keys[i] = c.String()
	}
	return keys
}

// ParseCategory resolves a category from its key, short code, or label.
// Matching is case-insensitive. Unknown input is a validation error.
func ParseCategory(s string) (Category, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, c := range All {
		if needle == categoryKeys[c] || needle == categoryCodes[c] || needle == strings.ToLower(categoryLabels[c]) {
			return c, nil
		}
	}
	return 0, errors.Validation(
		fmt.Sprintf("Unknown category '%s'", s),
		"Use one of: "+strings.Join(Keys(), ", "))
}

// MarshalText encodes the category as its key.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category from any accepted spelling.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
