package post

import (
	"strings"

	"github.com/ppiankov/spacetraveling/internal/cms"
)

// Optional data fields read for the detail view.
const (
	FieldBanner  = "banner"
	FieldContent = "content"
)

// WordsPerMinute is the reading speed used for ReadingMinutes.
const WordsPerMinute = 200

// Image is a CMS image reference.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Section is one heading of a post body with its paragraphs.
type Section struct {
	Heading    string   `json:"heading"`
	Paragraphs []string `json:"paragraphs"`
}

// Article is the detail view model of a post.
type Article struct {
	Post
	Banner         Image     `json:"banner"`
	Sections       []Section `json:"sections"`
	ReadingMinutes int       `json:"reading_minutes"`
}

type rawSection struct {
	Heading string      `json:"heading"`
	Body    []cms.Block `json:"body"`
}

// NormalizeArticle maps a record to an Article. The list fields are required
// as in Normalize; banner and content are optional but must be well formed.
func (n *Normalizer) NormalizeArticle(rec cms.Record) (Article, error) {
	p, err := n.Normalize(rec)
	if err != nil {
		return Article{}, err
	}
	a := Article{Post: p, Sections: []Section{}}

	if _, err := rec.Decode(FieldBanner, &a.Banner); err != nil {
		return Article{}, &MalformedRecordError{UID: rec.UID, Field: "data." + FieldBanner, Reason: err.Error()}
	}

	var raw []rawSection
	if _, err := rec.Decode(FieldContent, &raw); err != nil {
		return Article{}, &MalformedRecordError{UID: rec.UID, Field: "data." + FieldContent, Reason: err.Error()}
	}

	words := 0
	for _, rs := range raw {
		s := Section{Heading: rs.Heading, Paragraphs: make([]string, 0, len(rs.Body))}
		words += len(strings.Fields(rs.Heading))
		for _, b := range rs.Body {
			s.Paragraphs = append(s.Paragraphs, b.Text)
			words += len(strings.Fields(b.Text))
		}
		a.Sections = append(a.Sections, s)
	}
	a.ReadingMinutes = (words + WordsPerMinute - 1) / WordsPerMinute
	return a, nil
}
