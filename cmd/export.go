// =============================================================================
// SAP Invoice Export - Export Command
// =============================================================================
//
// This file defines the 'export' command, which is the main command of the
// application. It exports every invoice file of the input directory.
//
// COMMAND USAGE:
//   sapexport export [flags]
//
// FLAGS:
//   --file          Export a single file instead of scanning the input directory
//   --module        Use this module instead of matching file names
//   --schema        Override the configured schema (current or legacy)
//   --dry-run       Serialize and validate without writing or sending anything
//   --no-transmit   Write and archive documents but do not send them
//
// PROCESSING FLOW:
//   1. Load the main configuration and the module configs
//   2. Discover input files
//   3. Match each file to a module
//   4. Export the files on a bounded worker pool
//   5. Write the run summary and push metrics
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/freightbill/sap-invoice-export/internal/archive"
	"github.com/freightbill/sap-invoice-export/internal/config"
	"github.com/freightbill/sap-invoice-export/internal/converter"
	"github.com/freightbill/sap-invoice-export/internal/metrics"
	"github.com/freightbill/sap-invoice-export/internal/source"
	"github.com/freightbill/sap-invoice-export/internal/transmit"
	"github.com/freightbill/sap-invoice-export/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	exportFile   string
	exportModule string
	exportSchema string
	dryRun       bool
	noTransmit   bool
)

// =============================================================================
// EXPORT COMMAND DEFINITION
// =============================================================================

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export invoice files to SAP XML",
	Long: `The export command scans the input directory for invoice files, matches
them to a module configuration, and turns every invoice into a
LogisticARInvoices XML document.

For every invoice:
  - The generated XML is written to the output directory, valid or not
  - Invalid documents get an error log and are never transmitted
  - Valid documents are sent to the SAP FTP folder when ftp.enabled is set,
    then archived locally and in S3 when s3.enabled is set

An input file is moved to the input archive once all of its invoices were
exported. Files are processed concurrently, up to max_concurrency at a time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runExport(ctx, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFile, "file", "", "Export only this file")
	exportCmd.Flags().StringVar(&exportModule, "module", "", "Module to use instead of matching file names")
	exportCmd.Flags().StringVar(&exportSchema, "schema", "", "Override the configured schema (current or legacy)")
	exportCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Serialize and validate without writing or sending anything")
	exportCmd.Flags().BoolVar(&noTransmit, "no-transmit", false, "Do not send documents over FTP")
}

// =============================================================================
// MAIN EXPORT FUNCTION
// =============================================================================

func runExport(ctx context.Context, out io.Writer) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if exportSchema != "" {
		cfg.Schema = exportSchema
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	modules, err := config.LoadModuleConfigs(cfg.ConfigsDir)
	if err != nil {
		return errors.Wrap(err, "load module configs")
	}
	logrus.WithField("modules", len(modules)).Debug("Loaded module configurations")

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir, cfg.LogsDir)
	if err := files.EnsureDirectories(); err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputs []string
	if exportFile != "" {
		inputs = []string{exportFile}
	} else {
		inputs, err = files.DiscoverInputFiles(source.Supported)
		if err != nil {
			return err
		}
	}
	if len(inputs) == 0 {
		logrus.WithField("dir", cfg.InputDir).Info("No invoice files found")
		return nil
	}
	logrus.WithField("files", len(inputs)).Info("Starting export")

	// =========================================================================
	// STEP 3: WIRE INTEGRATIONS
	// =========================================================================

	m := metrics.New()
	opts := []converter.Option{
		converter.WithModules(modules),
		converter.WithMetrics(m),
		converter.WithDryRun(dryRun),
	}
	if cfg.FTP.Enabled && !noTransmit && !dryRun {
		opts = append(opts, converter.WithTransmitter(transmit.NewFTP(cfg.FTP)))
	}
	if cfg.S3.Enabled && !dryRun {
		a, err := archive.NewS3(ctx, cfg.S3)
		if err != nil {
			return err
		}
		opts = append(opts, converter.WithArchiver(a))
	}

	// =========================================================================
	// STEP 4: PROCESS FILES
	// =========================================================================

	results := processFiles(ctx, inputs, cfg.MaxConcurrency, func(ctx context.Context, path string) converter.Result {
		module, err := selectModule(modules, exportModule, path)
		if err != nil {
			return converter.Result{FilePath: path, Error: err}
		}
		return converter.New(path, module, cfg, files, opts...).Run(ctx)
	})

	// =========================================================================
	// STEP 5: SUMMARY AND METRICS
	// =========================================================================

	summary := summarize(results, startTime, time.Now())
	printSummary(out, results, summary)

	if !dryRun {
		if path, err := files.WriteSummaryLog(summary); err != nil {
			logrus.WithError(err).Warn("Failed to write summary log")
		} else {
			logrus.WithField("path", path).Debug("Wrote summary log")
		}
	}

	if err := m.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logrus.WithError(err).Warn("Failed to push metrics")
	}

	if summary.FailedFiles > 0 {
		return errors.Errorf("%d of %d file(s) did not export cleanly", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// processFiles runs fn for every path with at most workers running at once.
// Results are returned sorted by file path.
func processFiles(ctx context.Context, paths []string, workers int, fn func(ctx context.Context, path string) converter.Result) []converter.Result {
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	results := make(chan converter.Result, len(paths))

	for _, p := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- fn(ctx, path)
		}(p)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []converter.Result
	for r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

// selectModule returns the named module or the one matching the file name.
func selectModule(modules map[string]*config.ModuleConfig, name, path string) (*config.ModuleConfig, error) {
	if name == "" {
		return config.FindModule(modules, path)
	}
	m, ok := modules[name]
	if !ok {
		return nil, errors.Errorf("unknown module %q", name)
	}
	return m, nil
}

// summarize builds the run summary from the per-file results.
func summarize(results []converter.Result, start, end time.Time) utils.ProcessingSummary {
	s := utils.ProcessingSummary{
		StartTime:  start,
		EndTime:    end,
		TotalFiles: len(results),
	}

	for _, r := range results {
		s.TotalInvoices += r.Stats.Invoices
		s.ExportedInvoices += r.Stats.Exported
		s.InvalidInvoices += r.Stats.Invalid
		s.FailedInvoices += r.Stats.Failed
		s.Transmitted += r.Stats.Transmitted

		if r.Success && r.Error == nil {
			s.SuccessfulFiles++
		} else {
			s.FailedFiles++
		}

		if r.Error != nil && len(r.Invoices) == 0 {
			s.FailedFilesList = append(s.FailedFilesList, utils.FailedFileInfo{
				InputFile:    filepath.Base(r.FilePath),
				ErrorMessage: r.Error.Error(),
			})
			continue
		}

		pf := utils.ProcessedFileInfo{
			InputFile:   filepath.Base(r.FilePath),
			Module:      r.Module,
			ArchivePath: r.ArchivePath,
			ProcessTime: r.Stats.ProcessingTime,
		}
		for _, ir := range r.Invoices {
			info := utils.InvoiceInfo{
				Number:     ir.Invoice.Number,
				OutputFile: ir.OutputFile,
				Valid:      ir.Validation.IsValid,
			}
			if ir.Invoice.Transmission != nil {
				info.Transmitted = ir.Invoice.Transmission.Sent
				info.RemoteName = ir.Invoice.Transmission.RemoteName
			}
			if ir.Error != nil {
				info.Error = ir.Error.Error()
			}
			pf.Invoices = append(pf.Invoices, info)
		}
		s.ProcessedFiles = append(s.ProcessedFiles, pf)
		if r.Error != nil {
			s.FailedFilesList = append(s.FailedFilesList, utils.FailedFileInfo{
				InputFile:    filepath.Base(r.FilePath),
				ErrorMessage: r.Error.Error(),
			})
		}
	}

	return s
}

func printSummary(out io.Writer, results []converter.Result, s utils.ProcessingSummary) {
	for _, r := range results {
		name := filepath.Base(r.FilePath)
		switch {
		case r.Error != nil:
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, r.Error)
		case !r.Success:
			fmt.Fprintf(out, "  ✗ %s: %d exported, %d invalid, %d failed\n",
				name, r.Stats.Exported, r.Stats.Invalid, r.Stats.Failed)
		default:
			fmt.Fprintf(out, "  ✓ %s: %d invoice(s)\n", name, r.Stats.Exported)
		}
	}

	fmt.Fprintln(out, "\n=== Export Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", s.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", s.SuccessfulFiles)
	fmt.Fprintf(out, "Failed:          %d\n", s.FailedFiles)
	fmt.Fprintf(out, "Invoices:        %d (%d exported, %d invalid, %d failed)\n",
		s.TotalInvoices, s.ExportedInvoices, s.InvalidInvoices, s.FailedInvoices)
	fmt.Fprintf(out, "Transmitted:     %d\n", s.Transmitted)
	fmt.Fprintf(out, "Time elapsed:    %s\n", s.EndTime.Sub(s.StartTime))
}
