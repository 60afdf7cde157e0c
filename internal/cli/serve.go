package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/spacetraveling/internal/cms"
	"github.com/ppiankov/spacetraveling/internal/metrics"
	"github.com/ppiankov/spacetraveling/internal/server"
	"github.com/ppiankov/spacetraveling/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the blog over HTTP",
	RunE:  serveAction,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func serveAction(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	collector := metrics.New(Version)
	client, err := newClient(cfg, cms.WithObserver(collector))
	if err != nil {
		return err
	}
	normalizer, err := newNormalizer(cfg)
	if err != nil {
		return err
	}

	opts := server.Options{
		Content:      client,
		Normalizer:   normalizer,
		Metrics:      collector,
		Logger:       logger,
		DocumentType: cfg.CMS.DocumentType,
		PageSize:     cfg.CMS.PageSize,
		ViewTTL:      cfg.Server.ViewTTL.Duration,
		MaxViews:     cfg.Server.MaxViews,
		Version:      Version,
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.WithError(err).Warn("Snapshot store unavailable, first pages will be fetched live")
	} else {
		defer func() { _ = db.Close() }()
		opts.Snapshots = db
	}

	srv, err := server.New(opts)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, addr)
}
