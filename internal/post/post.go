// Package post turns raw content records into display-ready posts.
package post

import (
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/spacetraveling/internal/cms"
)

// Required data fields of a post record.
const (
	FieldTitle    = "title"
	FieldSubtitle = "subtitle"
	FieldAuthor   = "author"
	FieldDate     = "first_publication_date"
)

// ErrMalformedRecord matches every *MalformedRecordError.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError reports a record that lacks a required field
// or carries one that cannot be interpreted.
type MalformedRecordError struct {
	UID    string
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %q: %s: %s", e.UID, e.Field, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// Post is the view model of a single blog post.
type Post struct {
	UID         string     `json:"uid"`
	PublishedAt *time.Time `json:"published_at"`
	Date        string     `json:"date"` // formatted PublishedAt, or the missing-date placeholder
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Author      string     `json:"author"`
}

// Page is a batch of posts plus the cursor of the batch after it.
// NextCursor is empty once the source has no more pages.
type Page struct {
	Posts      []Post `json:"posts"`
	NextCursor string `json:"next_page"`
}

// Normalizer converts records using a fixed date format.
// It performs no I/O and is safe for concurrent use.
type Normalizer struct {
	dates *dateFormatter
}

// NewNormalizer validates df and returns a Normalizer for it.
func NewNormalizer(df DateFormat) (*Normalizer, error) {
	f, err := df.compile()
	if err != nil {
		return nil, fmt.Errorf("date format: %w", err)
	}
	return &Normalizer{dates: f}, nil
}

// Normalize maps one record to a Post. Title, subtitle and author are
// required; a missing publication date yields the placeholder label.
func (n *Normalizer) Normalize(rec cms.Record) (Post, error) {
	p := Post{UID: rec.UID}

	fields := []struct {
		name string
		dst  *string
	}{
		{FieldTitle, &p.Title},
		{FieldSubtitle, &p.Subtitle},
		{FieldAuthor, &p.Author},
	}
	for _, f := range fields {
		v, ok := rec.Text(f.name)
		if !ok {
			return Post{}, &MalformedRecordError{UID: rec.UID, Field: "data." + f.name, Reason: "missing"}
		}
		*f.dst = v
	}

	if rec.FirstPublicationDate == nil {
		p.Date = n.dates.missing
		return p, nil
	}

	t, err := parseTimestamp(*rec.FirstPublicationDate)
	if err != nil {
		return Post{}, &MalformedRecordError{UID: rec.UID, Field: FieldDate, Reason: err.Error()}
	}
	p.PublishedAt = &t
	p.Date = n.dates.format(t)
	return p, nil
}

// NormalizePage normalizes every record of a page in order. The first
// malformed record fails the whole page.
func (n *Normalizer) NormalizePage(page cms.Page) (Page, error) {
	posts := make([]Post, 0, len(page.Results))
	for _, rec := range page.Results {
		p, err := n.Normalize(rec)
		if err != nil {
			return Page{}, err
		}
		posts = append(posts, p)
	}
	return Page{Posts: posts, NextCursor: page.Next()}, nil
}

// FormatDate renders t with the normalizer's date format.
func (n *Normalizer) FormatDate(t time.Time) string {
	return n.dates.format(t)
}
