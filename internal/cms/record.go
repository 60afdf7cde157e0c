// Package cms talks to the headless content API that hosts the blog posts.
package cms

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is a single document as returned by the content API.
type Record struct {
	ID                   string                     `json:"id"`
	UID                  string                     `json:"uid"`
	Type                 string                     `json:"type"`
	FirstPublicationDate *string                    `json:"first_publication_date"`
	LastPublicationDate  *string                    `json:"last_publication_date"`
	Data                 map[string]json.RawMessage `json:"data"`
}

// Page is one cursor-delimited batch of records.
type Page struct {
	Page             int      `json:"page"`
	ResultsPerPage   int      `json:"results_per_page"`
	ResultsSize      int      `json:"results_size"`
	TotalResultsSize int      `json:"total_results_size"`
	TotalPages       int      `json:"total_pages"`
	NextPage         *string  `json:"next_page"`
	PrevPage         *string  `json:"prev_page"`
	Results          []Record `json:"results"`
}

// Next returns the cursor of the following page, or "" when the source is exhausted.
func (p Page) Next() string {
	if p.NextPage == nil {
		return ""
	}
	return *p.NextPage
}

// Block is one paragraph or heading of a structured text field.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Decode unmarshals the named data field into v. found is false when the
// field is absent or null; v is left untouched in that case.
func (r Record) Decode(field string, v any) (found bool, err error) {
	raw, ok := r.Data[field]
	if !ok {
		return false, nil
	}
	if t := strings.TrimSpace(string(raw)); t == "" || t == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", field, err)
	}
	return true, nil
}

// Text returns the named data field as plain text. Key-text fields come back
// verbatim; structured text fields have their block texts joined by a space.
// ok is false when the field is absent, null, or has any other shape.
func (r Record) Text(field string) (string, bool) {
	raw, found := r.Data[field]
	if !found {
		return "", false
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var blocks []Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, " "), true
}
