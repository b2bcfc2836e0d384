// Copyright 2024 LazyQuery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lazyquery/internal/config"
	"lazyquery/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	// dbPath is the --db flag; empty means config.DefaultStorePath()
	dbPath string
	// settings loaded in PersistentPreRunE
	settings *config.Settings
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

var rootCmd = &cobra.Command{
	Use:   "lazyquery",
	Short: "Browse and edit large item stores in batches",
	Long: `Browse and edit large item stores through a lazily loaded, cached view.

Items are fetched in batches, cached with LRU eviction, and edits are
buffered until they are committed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		if err := config.InitConfigDir(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		s, err := config.LoadSettings()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		settings = s
		storage.SetConfigBusyTimeout(s.BusyTimeout)
		setupLogging(s.Level())
		return nil
	},
}

// setupLogging sets the logrus level (case insensitive). Anything other than
// a known level silences logging.
func setupLogging(level string) {
	log.SetOutput(os.Stderr)
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		log.SetOutput(io.Discard)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("lazyquery version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "item store file (default: $LAZYQUERY_CONFIG_DIR/items.lazyquery)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
