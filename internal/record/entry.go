package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/gea-smc/gea/internal/errors"
)

// TimestampLayout is the layout of the timestamp in block headers and notifications.
const TimestampLayout = "2006-01-02 15:04:05"

// CreationMarker is the first line of a newly created category file.
const CreationMarker = "Archivo de registros creado automáticamente"

// Entry is one submitted record. It is immutable once created.
type Entry struct {
	category  Category
	content   string
	timestamp time.Time
}

// NewEntry validates the category and content and stamps the entry.
// Content that is empty after trimming whitespace is rejected.
func NewEntry(c Category, content string, at time.Time) (Entry, error) {
	if !c.Valid() {
		return Entry{}, errors.Validation(
			fmt.Sprintf("Unknown category %d", int(c)),
			"Use one of: "+strings.Join(Keys(), ", "))
	}
	if strings.TrimSpace(content) == "" {
		return Entry{}, errors.Validation(
			"Record content is empty",
			"Enter the full reference before saving")
	}
	return Entry{category: c, content: content, timestamp: at}, nil
}

// Category returns the entry's category.
func (e Entry) Category() Category { return e.category }

// Content returns the raw content as submitted.
func (e Entry) Content() string { return e.content }

// Timestamp returns when the entry was created.
func (e Entry) Timestamp() time.Time { return e.timestamp }

// Header returns the delimiter line for the entry.
func (e Entry) Header() string {
	return fmt.Sprintf("--- Registro del %s ---", e.timestamp.Format(TimestampLayout))
}

// Block returns the text appended to the category file:
// a blank separator line, the header, the content, and a trailing blank line.
func (e Entry) Block() []byte {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(e.Header())
	b.WriteString("\n")
	b.WriteString(e.content)
	b.WriteString("\n\n")
	return []byte(b.String())
}
