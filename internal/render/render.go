// Package render writes accumulated post lists for the terminal, Markdown and JSON.
package render

import (
	"fmt"
	"io"

	"github.com/ppiankov/spacetraveling/internal/post"
)

// LoadMoreLabel is the text of the "load more" control.
const LoadMoreLabel = "Carregar mais posts"

// ListInput is everything a formatter needs to render one list view.
type ListInput struct {
	Posts   []post.Post
	HasMore bool
	State   string
	Err     error // last load failure, if any
}

// Formatter writes a formatted list to w.
type Formatter interface {
	Format(w io.Writer, input ListInput) error
}

// ForName returns the formatter registered under name.
func ForName(name string, color bool) (Formatter, error) {
	switch name {
	case "terminal", "":
		return NewTerminal(color), nil
	case "markdown":
		return NewMarkdown(), nil
	case "json":
		return NewJSON(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (use terminal, markdown or json)", name)
	}
}

func byline(p post.Post) string {
	if p.Date == "" {
		return p.Author
	}
	return p.Date + " · " + p.Author
}
