// =============================================================================
// SAP Invoice Export - Converter Module
// =============================================================================
//
// This module contains the export pipeline for a single input file. It runs
// every invoice of the file from loading to archival.
//
// EXPORT PIPELINE:
//   1. Load the input file and apply the module's transformation rules
//   2. Group rows into invoices
//   3. Serialize each invoice to SAP XML
//   4. Validate the generated document
//   5. Write the document to the output directory (valid or not)
//   6. Transmit it, only if it is valid and a transmitter is configured
//   7. Record the transmission status on the invoice
//   8. Archive the document (locally and, if configured, in S3)
//   9. Archive the input file once every invoice succeeded
//
// An invalid document is written for inspection together with an error log
// and is never transmitted.
//
// CONCURRENCY:
//   Each file is processed by its own Converter. The transmitter, archiver
//   and metrics passed in are shared and must be safe for concurrent use.
//
// =============================================================================

package converter

import (
	"context"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/freightbill/sap-invoice-export/internal/config"
	"github.com/freightbill/sap-invoice-export/internal/metrics"
	"github.com/freightbill/sap-invoice-export/internal/sapxml"
	"github.com/freightbill/sap-invoice-export/internal/source"
	"github.com/freightbill/sap-invoice-export/internal/transmit"
	"github.com/freightbill/sap-invoice-export/internal/types"
	"github.com/freightbill/sap-invoice-export/internal/validation"
	"github.com/freightbill/sap-invoice-export/pkg/utils"
)

var logger = logrus.WithField("component", "converter")

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// Module is the name of the module the file was matched to.
	Module string

	// Invoices holds one entry per invoice, in file order.
	Invoices []InvoiceResult

	// ArchivePath is where the input file was moved. Empty if it stayed.
	ArchivePath string

	// Success is true when every invoice was exported and, when
	// transmission is enabled, sent.
	Success bool

	// Error is a file-level failure (unreadable file, bad rows, cancelled
	// run) or the first invoice error when continue_on_error is off.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// InvoiceResult is the outcome for one invoice.
type InvoiceResult struct {
	// Invoice is the loaded invoice with Transmission filled in.
	Invoice types.Invoice

	// OutputFile is the path of the written document. Empty on dry runs
	// and when serialization failed.
	OutputFile string

	// Validation is the validator's verdict on the generated document.
	Validation validation.Result

	// ErrorLog is the path of the validation report of an invalid document.
	ErrorLog string

	// Transmission is set when a transmission was attempted.
	Transmission *transmit.Outcome

	// ArchiveKey is the S3 object key of the archived document.
	ArchiveKey string

	// Error is set when the invoice could not be serialized, written or
	// transmitted. A failed validation is not an error.
	Error error
}

// Exported reports whether the invoice produced a valid document and, if a
// transmission was attempted, sent it.
func (r InvoiceResult) Exported() bool {
	if r.Error != nil || !r.Validation.IsValid {
		return false
	}
	return r.Transmission == nil || r.Transmission.Sent
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	Invoices    int
	LineItems   int
	Exported    int
	Invalid     int
	Failed      int
	Transmitted int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Transmitter hands a document to SAP.
type Transmitter interface {
	Send(ctx context.Context, name string, data []byte) (transmit.Outcome, error)
}

// Archiver stores a copy of a transmitted document.
type Archiver interface {
	Put(ctx context.Context, name string, data []byte, t time.Time) (string, error)
}

// Converter runs the export pipeline for one input file.
type Converter struct {
	filePath string
	module   *config.ModuleConfig
	modules  map[string]*config.ModuleConfig
	cfg      *config.MainConfig
	files    *utils.FileManager

	transmitter Transmitter
	archiver    Archiver
	metrics     *metrics.Metrics
	dryRun      bool
	now         func() time.Time

	log *logrus.Entry
}

// Option configures a Converter.
type Option func(*Converter)

// WithTransmitter enables transmission of valid documents.
func WithTransmitter(t Transmitter) Option {
	return func(c *Converter) { c.transmitter = t }
}

// WithArchiver enables the remote archive of valid documents.
func WithArchiver(a Archiver) Option {
	return func(c *Converter) { c.archiver = a }
}

// WithMetrics records the run in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Converter) { c.metrics = m }
}

// WithModules lets invoices that name another module use its profile.
func WithModules(modules map[string]*config.ModuleConfig) Option {
	return func(c *Converter) { c.modules = modules }
}

// WithDryRun serializes and validates without writing, sending or archiving.
func WithDryRun(dryRun bool) Option {
	return func(c *Converter) { c.dryRun = dryRun }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - filePath: The path to the input file.
//   - module: The module the file was matched to.
//   - cfg: The main application configuration.
//   - files: Output, log and archive directories.
//
// RETURNS:
//   - A new Converter instance.
func New(filePath string, module *config.ModuleConfig, cfg *config.MainConfig, files *utils.FileManager, opts ...Option) *Converter {
	c := &Converter{
		filePath: filePath,
		module:   module,
		cfg:      cfg,
		files:    files,
		now:      time.Now,
		log: logger.WithFields(logrus.Fields{
			"file":   filepath.Base(filePath),
			"module": module.Name,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the export pipeline for the file.
//
// RETURNS:
//   - A Result struct containing the outcome of the processing.
func (c *Converter) Run(ctx context.Context) (result Result) {
	startTime := c.now()
	result.FilePath = c.filePath
	result.Module = c.module.Name
	defer func() {
		result.Stats.ProcessingTime = c.now().Sub(startTime)
	}()

	c.log.Info("Processing file")

	// =========================================================================
	// STEP 1-2: LOAD, TRANSFORM AND GROUP
	// =========================================================================

	transformer := NewTransformer(c.module.TransformationRules)
	invoices, err := source.Load(c.filePath, c.module, transformer.ApplyRow)
	if err != nil {
		result.Error = err
		return result
	}

	result.Stats.Invoices = len(invoices)
	c.log.WithField("invoices", len(invoices)).Debug("Loaded invoices")

	// =========================================================================
	// STEP 3-8: EXPORT EVERY INVOICE
	// =========================================================================

	for _, inv := range invoices {
		if err := ctx.Err(); err != nil {
			result.Error = errors.Wrap(err, "run cancelled")
			return result
		}

		ir := c.exportInvoice(ctx, inv)
		result.Invoices = append(result.Invoices, ir)
		result.Stats.LineItems += len(inv.Items)

		switch {
		case ir.Error != nil:
			result.Stats.Failed++
		case !ir.Validation.IsValid:
			result.Stats.Invalid++
		default:
			result.Stats.Exported++
		}
		if ir.Transmission != nil && ir.Transmission.Sent {
			result.Stats.Transmitted++
		}

		if ir.Error != nil && !c.cfg.ContinueOnError {
			result.Error = errors.Wrapf(ir.Error, "invoice %s", inv.Number)
			return result
		}
	}

	result.Success = result.Stats.Failed == 0 && result.Stats.Invalid == 0

	// =========================================================================
	// STEP 9: ARCHIVE INPUT
	// =========================================================================

	if result.Success && !c.dryRun {
		archivePath, err := c.files.ArchiveInputFile(c.filePath)
		if err != nil {
			c.log.WithError(err).Warn("Failed to archive input file")
		} else {
			result.ArchivePath = archivePath
		}
	}

	c.log.WithFields(logrus.Fields{
		"exported":    result.Stats.Exported,
		"invalid":     result.Stats.Invalid,
		"failed":      result.Stats.Failed,
		"transmitted": result.Stats.Transmitted,
	}).Info("Finished file")

	return result
}

// exportInvoice serializes, validates, writes, transmits and archives one
// invoice.
func (c *Converter) exportInvoice(ctx context.Context, inv types.Invoice) (ir InvoiceResult) {
	start := c.now()
	module := c.moduleFor(inv)
	log := c.log.WithFields(logrus.Fields{"invoice": inv.Number, "module": module.Name})

	ir.Invoice = inv
	defer func() {
		c.metrics.ObserveInvoice(module.Name, metricResult(ir), c.now().Sub(start))
	}()

	opts, err := c.cfg.SerializerOptions(module)
	if err != nil {
		ir.Error = err
		return ir
	}

	data, err := sapxml.Serialize(inv, opts)
	if err != nil {
		log.WithError(err).Error("Failed to serialize invoice")
		ir.Error = err
		return ir
	}

	ir.Validation = validation.Validate(string(data))
	if c.dryRun {
		if !ir.Validation.IsValid {
			log.Warn(validation.FormatErrors(ir.Validation))
		}
		return ir
	}

	name := sapxml.GenerateFileName(c.cfg.FileNameFormat, sapxml.FileNameParams{
		Invoice: inv.Number,
		Module:  module.Name,
	}, c.now())
	ir.OutputFile, err = c.files.WriteOutput(name, data)
	if err != nil {
		ir.Error = errors.Wrap(err, "write document")
		return ir
	}

	if !ir.Validation.IsValid {
		log.WithField("errors", len(ir.Validation.Errors)).Warn("Generated document failed validation, not transmitting")
		c.metrics.ObserveTransmission(metrics.TransmitSkipped)
		if path, err := c.files.ErrorLogPath(ir.OutputFile); err != nil {
			log.WithError(err).Warn("Cannot place validation error log")
		} else if err := validation.WriteErrorLog(ir.Validation, path); err != nil {
			log.WithError(err).Warn("Cannot write validation error log")
		} else {
			ir.ErrorLog = path
		}
		return ir
	}

	if c.transmitter != nil {
		out, err := c.transmitter.Send(ctx, filepath.Base(ir.OutputFile), data)
		ir.Transmission = &out
		ir.Invoice.Transmission = out.Status()
		if err != nil {
			c.metrics.ObserveTransmission(metrics.TransmitFailed)
			ir.Error = err
			// The input stays in place, so the next run writes a fresh document.
			if rmErr := c.files.RemoveOutput(ir.OutputFile); rmErr != nil {
				log.WithError(rmErr).Warn("Cannot remove untransmitted output")
			}
			return ir
		}
		c.metrics.ObserveTransmission(metrics.TransmitSent)
	} else {
		c.metrics.ObserveTransmission(metrics.TransmitSkipped)
	}

	if _, err := c.files.ArchiveOutputFile(ir.OutputFile); err != nil {
		log.WithError(err).Warn("Failed to archive output file")
	}
	if c.archiver != nil {
		key, err := c.archiver.Put(ctx, filepath.Base(ir.OutputFile), data, c.now())
		if err != nil {
			log.WithError(err).Warn("Failed to archive document in S3")
		}
		ir.ArchiveKey = key
	}

	log.WithField("output", filepath.Base(ir.OutputFile)).Info("Exported invoice")
	return ir
}

// moduleFor returns the profile of the invoice's own module when it names a
// known one, and the file's module otherwise.
func (c *Converter) moduleFor(inv types.Invoice) *config.ModuleConfig {
	if inv.Module != "" && inv.Module != c.module.Name {
		if m, ok := c.modules[inv.Module]; ok {
			return m
		}
	}
	return c.module
}

func metricResult(ir InvoiceResult) string {
	switch {
	case ir.Error != nil:
		return metrics.ResultFailed
	case !ir.Validation.IsValid:
		return metrics.ResultInvalid
	default:
		return metrics.ResultExported
	}
}
