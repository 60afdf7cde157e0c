package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/spacetraveling/internal/cms"
	"github.com/ppiankov/spacetraveling/internal/config"
	"github.com/ppiankov/spacetraveling/internal/logging"
	"github.com/ppiankov/spacetraveling/internal/post"
	"github.com/ppiankov/spacetraveling/internal/store"
)

var buildEvery string

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Fetch and store the first page of posts",
	Long: `build fetches the first page of posts, normalizes it and stores it as a snapshot.
New list views start from the latest snapshot. With --every the build repeats on an
interval until interrupted; failed runs are logged and retried on the next tick.`,
	RunE: buildAction,
}

func init() {
	buildCmd.Flags().StringVar(&buildEvery, "every", "", "rebuild on an interval (e.g. 10m)")
}

func buildAction(cmd *cobra.Command, _ []string) error {
	every, err := parseEvery(buildEvery)
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

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	b := builder{cfg: cfg, client: client, normalizer: normalizer, db: db}

	if every == 0 {
		return b.run(ctx, out, logger)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runWatch(ctx, every, func() error {
		if err := b.run(ctx, out, logger); err != nil {
			logger.WithError(err).Error("Build failed")
		}
		return nil
	})
}

type builder struct {
	cfg        *config.Config
	client     *cms.Client
	normalizer *post.Normalizer
	db         *store.Store
}

func (b builder) run(ctx context.Context, out io.Writer, logger logging.Logger) error {
	raw, err := b.client.GetByType(ctx, b.cfg.CMS.DocumentType, b.cfg.CMS.PageSize)
	if err != nil {
		return fmt.Errorf("fetch first page: %w", err)
	}
	page, err := b.normalizer.NormalizePage(raw)
	if err != nil {
		return fmt.Errorf("normalize first page: %w", err)
	}

	snap, saved, err := b.db.SaveSnapshot(ctx, store.Snapshot{
		DocumentType: b.cfg.CMS.DocumentType,
		Endpoint:     b.client.Endpoint(),
		PageSize:     b.cfg.CMS.PageSize,
		NextCursor:   page.NextCursor,
		BuiltAt:      time.Now().UTC(),
		Posts:        page.Posts,
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	pruned, err := b.db.PruneSnapshots(ctx, b.cfg.Storage.KeepSnapshots)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	logger.WithFields(logging.Fields{
		"snapshot_id": snap.ID,
		"posts":       len(snap.Posts),
		"saved":       saved,
		"pruned":      pruned,
	}).Debug("Build finished")

	more := "no"
	if snap.NextCursor != "" {
		more = "yes"
	}
	if saved {
		fmt.Fprintf(out, "Built snapshot #%d: %d posts, more pages: %s\n", snap.ID, len(snap.Posts), more)
	} else {
		fmt.Fprintf(out, "First page unchanged since snapshot #%d (%d posts, more pages: %s)\n", snap.ID, len(snap.Posts), more)
	}
	if pruned > 0 {
		fmt.Fprintf(out, "Pruned %d old snapshots.\n", pruned)
	}
	return nil
}

func parseEvery(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse --every: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--every must be positive, got %s", value)
	}
	return d, nil
}

// runWatch calls runOnce immediately and then every interval until ctx is done.
func runWatch(ctx context.Context, every time.Duration, runOnce func() error) error {
	if err := runOnce(); err != nil {
		return err
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := runOnce(); err != nil {
				return err
			}
		}
	}
}
