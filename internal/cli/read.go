package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/spacetraveling/internal/cms"
	"github.com/ppiankov/spacetraveling/internal/config"
	"github.com/ppiankov/spacetraveling/internal/feed"
	"github.com/ppiankov/spacetraveling/internal/post"
	"github.com/ppiankov/spacetraveling/internal/render"
	"github.com/ppiankov/spacetraveling/internal/store"
)

var (
	readFormat  string
	readNoColor bool
	readAll     bool
	readPages   int
	readLive    bool
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read posts in the terminal, loading more pages on demand",
	Long: `read prints the first page of posts and then offers to load the next page.
Press Enter to load more or q to quit. With --all or --pages, or with a non-terminal
format, pages are loaded up front and the whole list is printed once.`,
	RunE: readAction,
}

func init() {
	readCmd.Flags().StringVar(&readFormat, "format", "terminal", "output format: terminal, markdown, json")
	readCmd.Flags().BoolVar(&readNoColor, "no-color", false, "disable ANSI colors")
	readCmd.Flags().BoolVar(&readAll, "all", false, "load every page")
	readCmd.Flags().IntVar(&readPages, "pages", 0, "number of extra pages to load")
	readCmd.Flags().BoolVar(&readLive, "live", false, "fetch the first page live instead of using the build snapshot")
}

func readAction(cmd *cobra.Command, _ []string) error {
	if readPages < 0 {
		return fmt.Errorf("--pages must not be negative, got %d", readPages)
	}
	formatter, err := render.ForName(readFormat, !readNoColor)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	normalizer, err := newNormalizer(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	first, err := readFirstPage(ctx, cfg, client, normalizer, logger)
	if err != nil {
		return err
	}

	acc := feed.New(client, normalizer)
	if err := acc.Initialize(first); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if readAll || readPages > 0 || (readFormat != "terminal" && readFormat != "") {
		return readBatch(ctx, out, acc, formatter)
	}
	return readInteractive(ctx, cmd.InOrStdin(), out, acc, formatter)
}

// readFirstPage prefers the latest build snapshot and falls back to a live fetch.
func readFirstPage(ctx context.Context, cfg *config.Config, client *cms.Client, normalizer *post.Normalizer, logger *logrus.Logger) (post.Page, error) {
	if !readLive {
		db, err := store.Open(cfg.Storage.Path)
		if err == nil {
			snap, err := db.LatestSnapshot(ctx, cfg.CMS.DocumentType)
			_ = db.Close()
			if err == nil {
				logger.WithField("snapshot_id", snap.ID).Debug("Using build snapshot")
				return snap.Page(), nil
			}
			if !errors.Is(err, store.ErrNoSnapshot) {
				logger.WithError(err).Warn("Failed to read build snapshot")
			}
		} else {
			logger.WithError(err).Warn("Snapshot store unavailable")
		}
	}

	raw, err := client.GetByType(ctx, cfg.CMS.DocumentType, cfg.CMS.PageSize)
	if err != nil {
		return post.Page{}, fmt.Errorf("fetch first page: %w", err)
	}
	page, err := normalizer.NormalizePage(raw)
	if err != nil {
		return post.Page{}, fmt.Errorf("normalize first page: %w", err)
	}
	return page, nil
}

func readBatch(ctx context.Context, out io.Writer, acc *feed.Accumulator, formatter render.Formatter) error {
	for loaded := 0; acc.HasMore() && (readAll || loaded < readPages); loaded++ {
		if res := acc.LoadMore(ctx); res.Outcome == feed.OutcomeFailed {
			return res.Err
		}
	}
	return formatter.Format(out, listInput(acc.Snapshot()))
}

func readInteractive(ctx context.Context, in io.Reader, out io.Writer, acc *feed.Accumulator, formatter render.Formatter) error {
	if err := formatter.Format(out, listInput(acc.Snapshot())); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for acc.HasMore() {
		fmt.Fprint(out, "Press Enter to load more, q to quit: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "q") {
			return nil
		}
		fmt.Fprintln(out)

		res := acc.LoadMore(ctx)
		switch {
		case res.Outcome == feed.OutcomeFailed:
			if err := formatter.Format(out, render.ListInput{HasMore: true, Err: res.Err}); err != nil {
				return err
			}
		case len(res.Appended) > 0 || acc.HasMore():
			if err := formatter.Format(out, render.ListInput{Posts: res.Appended, HasMore: acc.HasMore()}); err != nil {
				return err
			}
		}
	}
	fmt.Fprintln(out, "No more posts.")
	return nil
}

func listInput(snap feed.Snapshot) render.ListInput {
	return render.ListInput{
		Posts:   snap.Posts,
		HasMore: snap.HasMore(),
		State:   snap.State.String(),
		Err:     snap.Err,
	}
}
