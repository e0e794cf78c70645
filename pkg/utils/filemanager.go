// =============================================================================
// SAP Invoice Export - File Manager Utility
// =============================================================================
//
// This module provides the file handling around an export run:
//   - Directory management
//   - Input discovery
//   - Writing generated documents
//   - Archival of processed inputs and outputs
//   - The run summary log
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive once every invoice they carry
//     was exported
//   - Valid output files are copied to output_archive once written and,
//     when transmission is enabled, sent
//   - Input files that failed remain in place for the next run, and outputs
//     that could not be transmitted are removed so that run starts clean
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "files")

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the exporter.
type FileManager struct {
	// InputDir is the directory where invoice files are dropped.
	InputDir string

	// OutputDir is the directory where generated XML documents are written.
	OutputDir string

	// InputArchiveDir is the directory for archived input files.
	InputArchiveDir string

	// OutputArchiveDir is the directory for archived output files.
	OutputArchiveDir string

	// LogsDir receives validation error logs and run summaries.
	LogsDir string

	// UseTimestampSubdirs creates date-based subdirectories in archives.
	// Example: input_archive/2025/07/04/trucking_july.csv
	UseTimestampSubdirs bool

	now func() time.Time

	// mu serializes output naming across concurrent exports.
	mu sync.Mutex
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir, logsDir string) *FileManager {
	return &FileManager{
		InputDir:            inputDir,
		OutputDir:           outputDir,
		InputArchiveDir:     inputArchiveDir,
		OutputArchiveDir:    outputArchiveDir,
		LogsDir:             logsDir,
		UseTimestampSubdirs: true,
		now:                 time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all configured directories if they don't exist.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{
		fm.InputDir,
		fm.OutputDir,
		fm.InputArchiveDir,
		fm.OutputArchiveDir,
		fm.LogsDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %s", dir)
		}
	}

	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the regular files of the input directory accepted
// by keep, sorted by name. Hidden files are ignored.
//
// PARAMETERS:
//   - keep: Filter on the file path. Nil keeps every file.
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles(keep func(path string) bool) ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, errors.Wrap(err, "scan input directory")
	}

	var result []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(fm.InputDir, e.Name())
		if keep != nil && !keep(path) {
			logger.WithField("file", e.Name()).Debug("Skipping unsupported file")
			continue
		}
		result = append(result, path)
	}

	sort.Strings(result)
	return result, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// WriteOutput writes data to name inside the output directory. The content
// is written to a temporary file first and renamed into place. An existing
// output is never replaced: the name then gets a "_2", "_3", ... suffix.
//
// RETURNS:
//   - The path of the written file.
//   - An error if writing fails.
func (fm *FileManager) WriteOutput(name string, data []byte) (string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}

	tmp, err := os.CreateTemp(fm.OutputDir, ".tmp-*")
	if err != nil {
		return "", errors.Wrap(err, "create temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, "write output")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "close output")
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	path, err := freePath(fm.OutputDir, filepath.Base(name))
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, "move output into place")
	}
	if filepath.Base(path) != filepath.Base(name) {
		logger.WithFields(logrus.Fields{"name": filepath.Base(name), "written": filepath.Base(path)}).
			Warn("Output name already taken")
	}

	return path, nil
}

// RemoveOutput deletes a written document that will be regenerated by a
// later run. A file that is already gone is not an error.
func (fm *FileManager) RemoveOutput(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove output")
	}
	return nil
}

// freePath returns dir/name, or the first dir/<stem>_N<ext> that does not
// exist yet.
func freePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; n < 1000; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, candidate)
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", errors.Wrap(err, "check output name")
		}
	}
	return "", errors.Errorf("no free output name for %s", name)
}

// ErrorLogPath returns where the validation report of outputFile goes,
// creating the logs directory if needed.
func (fm *FileManager) ErrorLogPath(outputFile string) (string, error) {
	dir := fm.LogsDir
	if dir == "" {
		dir = fm.OutputDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create logs directory")
	}
	base := filepath.Base(outputFile)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_errors.txt"), nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return "", errors.Wrap(err, "create archive directory")
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Rename fails across devices; fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", errors.Wrap(err, "copy file to archive")
		}
		if err := os.Remove(filePath); err != nil {
			return "", errors.Wrap(err, "remove original file")
		}
	}

	logger.WithField("archive", archivePath).Debug("Archived input file")
	return archivePath, nil
}

// ArchiveOutputFile copies an output file to the archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
//
// NOTE: Output files are copied, not moved, so they remain in the output directory.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(fm.OutputArchiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return "", errors.Wrap(err, "create archive directory")
	}

	if err := copyFile(filePath, archivePath); err != nil {
		return "", errors.Wrap(err, "copy file to archive")
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := fm.now()
		return filepath.Join(
			archiveDir,
			now.Format("2006"),
			now.Format("01"),
			now.Format("02"),
			fileName,
		)
	}

	return filepath.Join(archiveDir, fileName)
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about an export run.
type ProcessingSummary struct {
	StartTime        time.Time
	EndTime          time.Time
	TotalFiles       int
	SuccessfulFiles  int
	FailedFiles      int
	TotalInvoices    int
	ExportedInvoices int
	InvalidInvoices  int
	FailedInvoices   int
	Transmitted      int
	ProcessedFiles   []ProcessedFileInfo
	FailedFilesList  []FailedFileInfo
}

// ProcessedFileInfo describes an input file whose invoices were exported.
type ProcessedFileInfo struct {
	InputFile   string
	Module      string
	ArchivePath string
	Invoices    []InvoiceInfo
	ProcessTime time.Duration
}

// InvoiceInfo describes one exported invoice.
type InvoiceInfo struct {
	Number      string
	OutputFile  string
	Valid       bool
	Transmitted bool
	RemoteName  string
	Error       string
}

// FailedFileInfo describes an input file that could not be processed.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a run summary into the logs directory.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func (fm *FileManager) WriteSummaryLog(summary ProcessingSummary) (string, error) {
	dir := fm.LogsDir
	if dir == "" {
		dir = fm.OutputDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create logs directory")
	}

	summaryFileName := fmt.Sprintf("export_summary_%s.txt", summary.StartTime.Format("20060102_150405"))
	summaryPath := filepath.Join(dir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", errors.Wrap(err, "create summary file")
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(w, "SAP Invoice Export - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Successful:         %d\n"+
		"  Failed:             %d\n"+
		"  Total Invoices:     %d\n"+
		"  Exported:           %d\n"+
		"  Invalid:            %d\n"+
		"  Failed Invoices:    %d\n"+
		"  Transmitted:        %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalInvoices,
		summary.ExportedInvoices,
		summary.InvalidInvoices,
		summary.FailedInvoices,
		summary.Transmitted)

	if len(summary.ProcessedFiles) > 0 {
		w.WriteString("Processed Files:\n")
		w.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(w, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(w, "  Module:       %s\n", pf.Module)
			if pf.ArchivePath != "" {
				fmt.Fprintf(w, "  Archived:     %s\n", pf.ArchivePath)
			}
			fmt.Fprintf(w, "  Process Time: %s\n", pf.ProcessTime.String())
			for _, inv := range pf.Invoices {
				fmt.Fprintf(w, "    %-20s %s\n", inv.Number, invoiceLine(inv))
			}
			w.WriteString("\n")
		}
	}

	if len(summary.FailedFilesList) > 0 {
		w.WriteString("Failed Files:\n")
		w.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(w, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(w, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	w.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := w.Flush(); err != nil {
		return "", errors.Wrap(err, "flush summary file")
	}

	return summaryPath, nil
}

func invoiceLine(inv InvoiceInfo) string {
	switch {
	case inv.Error != "":
		return "FAILED: " + inv.Error
	case !inv.Valid:
		return "INVALID -> " + filepath.Base(inv.OutputFile)
	case inv.Transmitted:
		return "SENT -> " + inv.RemoteName
	default:
		return "WRITTEN -> " + filepath.Base(inv.OutputFile)
	}
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}
