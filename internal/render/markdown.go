package render

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownFormatter formats a list as Markdown.
type MarkdownFormatter struct{}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes the list as Markdown to w.
func (f *MarkdownFormatter) Format(w io.Writer, input ListInput) error {
	fmt.Fprintf(w, "# Posts\n\n")

	if len(input.Posts) == 0 && !input.HasMore {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}

	for _, p := range input.Posts {
		fmt.Fprintf(w, "## [%s](/post/%s)\n\n", escapeMarkdown(p.Title), p.UID)
		if p.Subtitle != "" {
			fmt.Fprintf(w, "%s\n\n", escapeMarkdown(p.Subtitle))
		}
		fmt.Fprintf(w, "*%s*\n\n", escapeMarkdown(byline(p)))
	}

	if input.Err != nil {
		fmt.Fprintf(w, "> **Failed to load posts:** %s\n\n", input.Err)
	}
	if input.HasMore {
		fmt.Fprintf(w, "_%s_\n", LoadMoreLabel)
	}
	return nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
