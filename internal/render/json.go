package render

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/spacetraveling/internal/post"
)

type jsonList struct {
	Posts   []post.Post `json:"posts"`
	HasMore bool        `json:"has_more"`
	State   string      `json:"state,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// JSONFormatter formats a list as JSON.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes the list as JSON to w.
func (f *JSONFormatter) Format(w io.Writer, input ListInput) error {
	out := jsonList{
		Posts:   input.Posts,
		HasMore: input.HasMore,
		State:   input.State,
	}
	if out.Posts == nil {
		out.Posts = []post.Post{}
	}
	if input.Err != nil {
		out.Error = input.Err.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
