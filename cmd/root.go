// =============================================================================
// SAP Invoice Export - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (sapexport)
//   ├── exportCmd   (sapexport export)
//   ├── validateCmd (sapexport validate FILE.xml)
//   └── versionCmd  (sapexport version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the main configuration through viper
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/freightbill/sap-invoice-export/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// Empty means ./config.yaml if it exists, defaults otherwise.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sapexport",
	Short: "SAP Invoice Export - Turn billing invoices into SAP AR invoice XML",
	Long: `sapexport converts invoices exported from the billing system into the
LogisticARInvoices XML documents consumed by SAP and delivers them to the SAP
inbound FTP folder.

Key Features:
  - Invoice documents (.yaml, .json) and line-item exports (.csv, .xlsx)
  - Per-module SAP defaults (trucking, agency, shipchandler)
  - Current and legacy OtherItem layouts
  - Validation of every document before it is transmitted
  - FTP delivery with retries, S3 archive and Pushgateway metrics

Example Usage:
  sapexport export                          # Export every file in the input directory
  sapexport export --file trk_july.csv      # Export a single file
  sapexport export --dry-run                # Serialize and validate only
  sapexport validate out/LogisticARInvoice_F-1.xml --check-order`,

	SilenceUsage: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging("info")
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the main configuration file (default is ./config.yaml if present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// loadConfig reads the main configuration and applies its log level.
func loadConfig() (*config.MainConfig, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

// setupLogging configures the global logrus logger. --verbose wins over level.
func setupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logrus.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if verbose {
		lvl = logrus.DebugLevel
	}
	logrus.SetLevel(lvl)
}
