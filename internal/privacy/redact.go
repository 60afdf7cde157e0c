// Package privacy scrubs credentials from text before it is logged or shown.
package privacy

import (
	"fmt"
	"regexp"
)

const redactedPlaceholder = "[REDACTED]"

// builtin patterns keep their first group and redact the rest of the match.
var builtin = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(access_token=)[^&\s"']+`),
	regexp.MustCompile(`(?i)(bearer\s+)[a-z0-9._~+/=-]+`),
}

// Compile compiles user supplied patterns. Their whole match is redacted.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Redactor removes API tokens and any extra patterns from strings.
// The zero value is not usable; a nil *Redactor applies the built-in patterns only.
type Redactor struct {
	extra []*regexp.Regexp
}

// NewRedactor returns a redactor applying the built-in token patterns plus extra.
func NewRedactor(extra []string) (*Redactor, error) {
	compiled, err := Compile(extra)
	if err != nil {
		return nil, err
	}
	return &Redactor{extra: compiled}, nil
}

// String returns text with every sensitive match replaced by [REDACTED].
func (r *Redactor) String(text string) string {
	for _, re := range builtin {
		text = re.ReplaceAllString(text, "${1}"+redactedPlaceholder)
	}
	if r == nil {
		return text
	}
	for _, re := range r.extra {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// URL redacts credentials carried in a URL's query string.
func URL(raw string) string {
	var r *Redactor
	return r.String(raw)
}
