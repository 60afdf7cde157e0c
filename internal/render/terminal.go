package render

import (
	"fmt"
	"io"
)

// TerminalFormatter formats a list for terminal output.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// Format writes one block per post, then the load-more hint or error banner.
func (f *TerminalFormatter) Format(w io.Writer, input ListInput) error {
	if len(input.Posts) == 0 && !input.HasMore {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}

	for _, p := range input.Posts {
		fmt.Fprintln(w, f.bold(p.Title))
		if p.Subtitle != "" {
			fmt.Fprintf(w, "  %s\n", p.Subtitle)
		}
		fmt.Fprintf(w, "  %s\n", f.dim(byline(p)))
		fmt.Fprintf(w, "  %s\n", f.dim("/post/"+p.UID))
		fmt.Fprintln(w)
	}

	if input.Err != nil {
		fmt.Fprintln(w, f.red("Failed to load posts: "+input.Err.Error()))
	}
	if input.HasMore {
		fmt.Fprintln(w, f.pink("[ "+LoadMoreLabel+" ]"))
	}
	return nil
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}

func (f *TerminalFormatter) red(s string) string {
	if !f.color {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}

func (f *TerminalFormatter) pink(s string) string {
	if !f.color {
		return s
	}
	return "\033[35m" + s + "\033[0m"
}
