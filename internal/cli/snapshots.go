package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/spacetraveling/internal/store"
)

var snapshotsFormat string

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored first-page snapshots",
	RunE:  snapshotsAction,
}

func init() {
	snapshotsCmd.Flags().StringVar(&snapshotsFormat, "format", "terminal", "output format: terminal, json")
}

func snapshotsAction(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	infos, err := db.ListSnapshots(cmd.Context())
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	out := cmd.OutOrStdout()
	switch snapshotsFormat {
	case "json":
		return printSnapshotsJSON(out, infos)
	case "terminal", "":
		printSnapshots(out, infos)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", snapshotsFormat)
	}
}

func printSnapshots(w io.Writer, infos []store.SnapshotInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No snapshots found. Run 'spacetraveling build' first.")
		return
	}
	fmt.Fprintf(w, "%-6s %-12s %-6s %-5s %s\n", "ID", "TYPE", "POSTS", "MORE", "BUILT")
	for _, info := range infos {
		more := "no"
		if info.HasMore {
			more = "yes"
		}
		fmt.Fprintf(w, "%-6d %-12s %-6d %-5s %s\n",
			info.ID, info.DocumentType, info.PostCount, more, info.BuiltAt.Local().Format(time.DateTime))
	}
}

type jsonSnapshot struct {
	ID           int64  `json:"id"`
	DocumentType string `json:"document_type"`
	Posts        int    `json:"posts"`
	HasMore      bool   `json:"has_more"`
	BuiltAt      string `json:"built_at"`
}

func printSnapshotsJSON(w io.Writer, infos []store.SnapshotInfo) error {
	out := make([]jsonSnapshot, 0, len(infos))
	for _, info := range infos {
		out = append(out, jsonSnapshot{
			ID:           info.ID,
			DocumentType: info.DocumentType,
			Posts:        info.PostCount,
			HasMore:      info.HasMore,
			BuiltAt:      info.BuiltAt.UTC().Format(time.RFC3339),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"snapshots": out})
}
