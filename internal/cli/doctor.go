package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/spacetraveling/internal/store"
)

const doctorTimeout = 10 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, storage and content API",
	RunE:  doctorAction,
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(out, false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(out, true, "config directory %s", configDir)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		printCheck(out, false, "config.yaml: %v", err)
		return errors.New("some checks failed")
	}
	printCheck(out, true, "config.yaml (type %s, page size %d, locale %s)", cfg.CMS.DocumentType, cfg.CMS.PageSize, cfg.Date.Locale)

	if _, err := newNormalizer(cfg); err != nil {
		printCheck(out, false, "date format: %v", err)
		ok = false
	} else {
		printCheck(out, true, "date format %q", cfg.Date.Layout)
	}

	// Database
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(out, false, "database: %v", err)
		ok = false
	} else {
		printCheck(out, true, "database %s", cfg.Storage.Path)
		snap, err := db.LatestSnapshot(cmd.Context(), cfg.CMS.DocumentType)
		switch {
		case err == nil:
			printInfo(out, "latest snapshot #%d built %s ago", snap.ID, time.Since(snap.BuiltAt).Round(time.Second))
		case errors.Is(err, store.ErrNoSnapshot):
			printInfo(out, "no snapshot yet, first pages are fetched live (run 'spacetraveling build')")
		default:
			printCheck(out, false, "snapshot: %v", err)
			ok = false
		}
		_ = db.Close()
	}

	// Content API
	client, err := newClient(cfg)
	if err != nil {
		printCheck(out, false, "cms: %v", err)
		ok = false
	} else {
		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		ref, err := client.MasterRef(ctx)
		cancel()
		if err != nil {
			printCheck(out, false, "cms %s: %v", client.Endpoint(), err)
			ok = false
		} else {
			printCheck(out, true, "cms %s (master ref %s)", client.Endpoint(), ref)
		}
	}

	if !ok {
		return errors.New("some checks failed")
	}
	fmt.Fprintln(out, "\nAll checks passed.")
	return nil
}

func printCheck(w io.Writer, pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Fprintf(w, "[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "[INFO] %s\n", fmt.Sprintf(format, args...))
}
