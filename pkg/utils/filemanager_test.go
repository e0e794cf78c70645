package utils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "input_archive"),
		filepath.Join(root, "output_archive"),
		filepath.Join(root, "logs"),
	)
	fm.now = func() time.Time { return time.Date(2025, 7, 4, 13, 45, 9, 0, time.UTC) }
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func TestEnsureDirectories(t *testing.T) {
	fm := newTestManager(t)
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir, fm.OutputArchiveDir, fm.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newTestManager(t)
	for _, name := range []string{"b.csv", "a.yaml", "notes.txt", ".hidden.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(fm.InputDir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InputDir, "sub.csv"), 0o755))

	files, err := fm.DiscoverInputFiles(func(p string) bool {
		return !strings.HasSuffix(p, ".txt")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(fm.InputDir, "a.yaml"),
		filepath.Join(fm.InputDir, "b.csv"),
	}, files)

	all, err := fm.DiscoverInputFiles(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	fm.InputDir = filepath.Join(fm.InputDir, "missing")
	_, err = fm.DiscoverInputFiles(nil)
	assert.Error(t, err)
}

func TestWriteOutput(t *testing.T) {
	fm := newTestManager(t)
	path, err := fm.WriteOutput("../escape/LogisticARInvoice_F-1.xml", []byte("<x/>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputDir, "LogisticARInvoice_F-1.xml"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<x/>", string(b))

	entries, err := os.ReadDir(fm.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteOutputNeverReplaces(t *testing.T) {
	fm := newTestManager(t)

	first, err := fm.WriteOutput("LogisticARInvoice_F-1.xml", []byte("first"))
	require.NoError(t, err)
	second, err := fm.WriteOutput("LogisticARInvoice_F-1.xml", []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputDir, "LogisticARInvoice_F-1_2.xml"), second)

	b, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(b))

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := fm.WriteOutput("LogisticARInvoice_F-2.xml", []byte("x"))
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		seen[p] = true
	}
	assert.Len(t, seen, len(paths))

	require.NoError(t, fm.RemoveOutput(second))
	assert.NoFileExists(t, second)
	assert.NoError(t, fm.RemoveOutput(second))
}

func TestArchiveFiles(t *testing.T) {
	fm := newTestManager(t)
	in := filepath.Join(fm.InputDir, "trucking_july.csv")
	require.NoError(t, os.WriteFile(in, []byte("rows"), 0o644))
	out, err := fm.WriteOutput("a.xml", []byte("<x/>"))
	require.NoError(t, err)

	archivedIn, err := fm.ArchiveInputFile(in)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "2025", "07", "04", "trucking_july.csv"), archivedIn)
	assert.NoFileExists(t, in)
	assert.FileExists(t, archivedIn)

	archivedOut, err := fm.ArchiveOutputFile(out)
	require.NoError(t, err)
	assert.FileExists(t, out)
	assert.FileExists(t, archivedOut)

	fm.UseTimestampSubdirs = false
	assert.Equal(t, filepath.Join(fm.OutputArchiveDir, "a.xml"), fm.getArchivePath(fm.OutputArchiveDir, out))
}

func TestWriteSummaryLog(t *testing.T) {
	fm := newTestManager(t)
	start := time.Date(2025, 7, 4, 13, 45, 9, 0, time.UTC)

	path, err := fm.WriteSummaryLog(ProcessingSummary{
		StartTime:        start,
		EndTime:          start.Add(2 * time.Second),
		TotalFiles:       2,
		SuccessfulFiles:  1,
		FailedFiles:      1,
		TotalInvoices:    2,
		ExportedInvoices: 1,
		InvalidInvoices:  1,
		Transmitted:      1,
		ProcessedFiles: []ProcessedFileInfo{{
			InputFile: "trucking_july.csv",
			Module:    "trucking",
			Invoices: []InvoiceInfo{
				{Number: "F-1", OutputFile: "out/a.xml", Valid: true, Transmitted: true, RemoteName: "a.xml"},
				{Number: "F-2", OutputFile: "out/b.xml"},
			},
		}},
		FailedFilesList: []FailedFileInfo{{InputFile: "agency.csv", ErrorMessage: "row 2: InvoiceNumber is empty"}},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.LogsDir, "export_summary_20250704_134509.txt"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(b)
	assert.Contains(t, text, "Duration:       2s")
	assert.Contains(t, text, "SENT -> a.xml")
	assert.Contains(t, text, "INVALID -> b.xml")
	assert.Contains(t, text, "row 2: InvoiceNumber is empty")
}

func TestErrorLogPath(t *testing.T) {
	fm := newTestManager(t)
	path, err := fm.ErrorLogPath(filepath.Join(fm.OutputDir, "LogisticARInvoice_F-1.xml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.LogsDir, "LogisticARInvoice_F-1_errors.txt"), path)
}
