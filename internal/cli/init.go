package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/spacetraveling/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func initAction(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(out, configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Fprintf(out, "Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Fprintf(out, "Initialized %s. Set cms.endpoint, then run 'spacetraveling build'.\n", configDir)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(out io.Writer, path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(out, "  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# spacetraveling configuration

cms:
  endpoint: https://your-repo.cdn.prismic.io/api/v2
  # endpoint_env: PRISMIC_API_ENDPOINT
  # access_token_env: PRISMIC_ACCESS_TOKEN
  document_type: posts
  page_size: 2
  timeout: 30s

date:
  locale: pt-BR
  layout: "02 de January de 2006"
  timezone: UTC
  missing: ""

server:
  addr: ":3000"
  view_ttl: 30m
  max_views: 1000

storage:
  path: .spacetraveling/snapshots.db
  keep_snapshots: 5

log:
  level: info
  format: json
  redact: []
  # - "(?i)api[_-]?key=\\S+"
`
