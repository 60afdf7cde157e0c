// Package cli provides the command-line interface for spacetraveling.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/spacetraveling/internal/cms"
	"github.com/ppiankov/spacetraveling/internal/config"
	"github.com/ppiankov/spacetraveling/internal/logging"
	"github.com/ppiankov/spacetraveling/internal/post"
	"github.com/ppiankov/spacetraveling/internal/privacy"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:           "spacetraveling",
	Short:         "Blog front end for a headless CMS",
	Long:          "spacetraveling reads posts from a headless content API, snapshots the first page at build time and serves a paginated list whose \"load more\" control appends the next page.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "spacetraveling %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", config.DefaultConfigDir, "configuration directory")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(doctorCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads .env files from the working directory, then the config
// file, and returns a logger configured from it.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	boot := logging.New(os.Stderr, config.GetEnv(config.EnvLogLevel, config.DefaultLogLevel), "text")
	config.LoadEnv(".", boot)

	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	redactor, err := privacy.NewRedactor(cfg.Log.Redact)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	logger.AddHook(privacy.NewHook(redactor))
	return cfg, logger, nil
}

func newClient(cfg *config.Config, opts ...cms.Option) (*cms.Client, error) {
	if cfg.CMS.AccessToken != "" {
		opts = append(opts, cms.WithAccessToken(cfg.CMS.AccessToken))
	}
	client, err := cms.NewClient(cfg.CMS.Endpoint, cfg.CMS.Timeout.Duration, opts...)
	if err != nil {
		return nil, fmt.Errorf("create cms client: %w", err)
	}
	return client, nil
}

func newNormalizer(cfg *config.Config) (*post.Normalizer, error) {
	return post.NewNormalizer(post.DateFormat{
		Locale:   cfg.Date.Locale,
		Layout:   cfg.Date.Layout,
		Timezone: cfg.Date.Timezone,
		Missing:  cfg.Date.Missing,
	})
}
