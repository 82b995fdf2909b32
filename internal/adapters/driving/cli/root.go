// Package cli implements the command line interface using cobra.
// Commands talk to the core exclusively through driving ports, injected
// once at startup via Setup.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
	"github.com/radnorm/radnorm/internal/core/ports/driving"
	"github.com/radnorm/radnorm/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// JobStore lists persisted batch job snapshots from earlier runs.
type JobStore interface {
	ListJobs(ctx context.Context, limit int) ([]domain.BatchJob, error)
}

// Services are the driving-port handles the commands operate on.
type Services struct {
	Ingestor  driving.Ingestor
	Documents driving.DocumentService
	Export    driving.ExportService
	Cases     driving.CaseService
	Config    driven.ConfigStore
	Jobs      JobStore
	Loader    driven.CaseLoader
}

// services holds the injected handles.
var services *Services

// Setup injects the service handles. Must be called before Execute.
func Setup(s *Services) {
	services = s
}

// SetupFunc builds the service handles from the persistent flag values
// once they are parsed.
type SetupFunc func(dbDir, casesPath string) (*Services, error)

// buildServices defers wiring until flags are known.
var buildServices SetupFunc

// SetupLazy registers a builder invoked before the first command runs.
// Setup-injected handles take precedence (tests use Setup directly).
func SetupLazy(fn SetupFunc) {
	buildServices = fn
}

// Persistent flags.
var (
	verbose   bool
	dbDir     string
	casesPath string
)

var rootCmd = &cobra.Command{
	Use:   "radnorm",
	Short: "Radiology annotation ingestion and normalisation engine",
	Long: `Radnorm ingests heterogeneous radiology annotation exports (XML, JSON),
detects which known schema variant each one follows, maps it into a canonical
document and derives searchable keywords.

Typical flow:

  radnorm ingest ./exports        Ingest a directory of annotation files
  radnorm search spiculation      Find documents by keyword
  radnorm case list               Inspect the registered parse cases`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if services == nil && buildServices != nil {
			s, err := buildServices(dbDir, casesPath)
			if err != nil {
				return err
			}
			services = s
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&dbDir, "db", "", "Data directory (default ~/.radnorm/data)")
	rootCmd.PersistentFlags().StringVar(&casesPath, "cases", "", "Extra parse-case pack file or directory")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
