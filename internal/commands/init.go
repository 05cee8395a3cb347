package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/vidtrend/internal/config"
	"github.com/dwsmith1983/vidtrend/internal/load"
	"github.com/dwsmith1983/vidtrend/internal/source"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

const sampleInput = "sample_raw.json"

const starterConfig = `source:
  type: file
  path: ./sample_raw.json
  # type: youtube
  # regionCode: US
  # maxResults: 50
  # categories:
  #   - {id: 10, name: Music}
  #   - {id: 20, name: Gaming}
  #   - {id: 24, name: Entertainment}
blob:
  type: file
  dir: ./data
database:
  type: sqlite
  path: ./youtube_trending.db
pipeline:
  concurrency: 4
  topLimit: 20
server:
  addr: ":8080"
# schedule:
#   cron: "0 */6 * * *"
# cache:
#   redisUrl: redis://localhost:6379/0
#   ttl: 5m
# notify:
#   console: true
log:
  level: info
  format: text
`

const starterEnv = `# Copy to .env and fill in.
YOUTUBE_API_KEY=
DB_PASSWORD=
VIDTREND_API_KEY=
AWS_ACCESS_KEY_ID=
AWS_SECRET_ACCESS_KEY=
`

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var skipSample bool

	cmd := &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Initialize a new vidtrend project",
		Long:  "Creates vidtrend.yaml, .env.example and a sample raw input file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, args[0], skipSample, time.Now())
		},
	}

	cmd.Flags().BoolVar(&skipSample, "skip-sample", false, "Do not write sample raw input")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, skipSample bool, now time.Time) error {
	out := cmd.OutOrStdout()
	_, _ = bold.Fprintf(out, "Initializing vidtrend project: %s\n", dir)

	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.example"), []byte(starterEnv), 0o644); err != nil {
		return fmt.Errorf("writing .env.example: %w", err)
	}
	_, _ = green.Fprintln(out, "  ✓ Config written")

	if !skipSample {
		raw := load.SyntheticRecords(types.FormatBatchID(now), now, load.SyntheticSize)
		if err := source.WriteJSON(filepath.Join(dir, sampleInput), raw); err != nil {
			return err
		}
		_, _ = green.Fprintf(out, "  ✓ Sample input written (%d records)\n", load.SyntheticSize)
	}

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintf(out, "Next: cd %s && vidtrend run\n", dir)
	return nil
}
