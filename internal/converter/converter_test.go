package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightbill/sap-invoice-export/internal/config"
	"github.com/freightbill/sap-invoice-export/internal/metrics"
	"github.com/freightbill/sap-invoice-export/internal/sapxml"
	"github.com/freightbill/sap-invoice-export/internal/transmit"
	"github.com/freightbill/sap-invoice-export/pkg/utils"
)

var fixedNow = time.Date(2025, 7, 4, 13, 45, 9, 0, time.UTC)

type fakeTransmitter struct {
	sent map[string][]byte
	err  error
}

func (f *fakeTransmitter) Send(ctx context.Context, name string, data []byte) (transmit.Outcome, error) {
	out := transmit.Outcome{RemoteName: name, Attempts: 1}
	if f.err != nil {
		return out, f.err
	}
	if f.sent == nil {
		f.sent = map[string][]byte{}
	}
	f.sent[name] = data
	out.Sent = true
	out.SentAt = fixedNow
	return out, nil
}

type fakeArchiver struct {
	keys []string
}

func (f *fakeArchiver) Put(ctx context.Context, name string, data []byte, t time.Time) (string, error) {
	key := "sap-invoices/" + t.Format("2006/01") + "/" + name
	f.keys = append(f.keys, key)
	return key, nil
}

type fixture struct {
	cfg   *config.MainConfig
	files *utils.FileManager
	input string
}

func newFixture(t *testing.T, name, content string) fixture {
	t.Helper()
	root := t.TempDir()
	cfg := &config.MainConfig{
		InputDir:         filepath.Join(root, "input"),
		OutputDir:        filepath.Join(root, "output"),
		InputArchiveDir:  filepath.Join(root, "input_archive"),
		OutputArchiveDir: filepath.Join(root, "output_archive"),
		LogsDir:          filepath.Join(root, "logs"),
		FileNameFormat:   sapxml.DefaultFileNameFormat,
		Schema:           "current",
		ContinueOnError:  true,
	}
	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir, cfg.LogsDir)
	require.NoError(t, files.EnsureDirectories())

	input := filepath.Join(cfg.InputDir, name)
	require.NoError(t, os.WriteFile(input, []byte(content), 0o644))
	return fixture{cfg: cfg, files: files, input: input}
}

func (f fixture) converter(opts ...Option) *Converter {
	modules := config.BuiltinModules()
	c := New(f.input, modules["trucking"], f.cfg, f.files, append([]Option{WithModules(modules)}, opts...)...)
	c.now = func() time.Time { return fixedNow }
	return c
}

const twoInvoices = `InvoiceNumber,CustomerNbr,IssueDate,Amount,Service,BusinessType
F-DHL-01250,1234567890,2025-07-04,850.00,SRV100,IMPORT
F-DHL-01250,1234567890,2025-07-04,350.00,SRV200,EXPORT
F-DHL-01251,1234567890,2025-07-04,280.00,SRV300,IMPORT
`

func TestRunExportsTransmitsAndArchives(t *testing.T) {
	f := newFixture(t, "trucking_july.csv", twoInvoices)
	tx := &fakeTransmitter{}
	arch := &fakeArchiver{}
	m := metrics.New()

	res := f.converter(WithTransmitter(tx), WithArchiver(arch), WithMetrics(m)).Run(context.Background())
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Equal(t, "trucking", res.Module)
	assert.Equal(t, ProcessingStats{Invoices: 2, LineItems: 3, Exported: 2, Transmitted: 2}, res.Stats)

	require.Len(t, res.Invoices, 2)
	first := res.Invoices[0]
	assert.True(t, first.Exported())
	assert.Equal(t, filepath.Join(f.cfg.OutputDir, "LogisticARInvoice_F-DHL-01250_20250704134509.xml"), first.OutputFile)
	require.NotNil(t, first.Invoice.Transmission)
	assert.True(t, first.Invoice.Transmission.Sent)
	assert.Equal(t, "LogisticARInvoice_F-DHL-01250_20250704134509.xml", first.Invoice.Transmission.RemoteName)
	assert.Equal(t, "sap-invoices/2025/07/LogisticARInvoice_F-DHL-01250_20250704134509.xml", first.ArchiveKey)

	written, err := os.ReadFile(first.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, written, tx.sent["LogisticARInvoice_F-DHL-01250_20250704134509.xml"])
	assert.Contains(t, string(written), "<AmntTransactCur>1200.000</AmntTransactCur>")

	assert.Len(t, arch.keys, 2)
	assert.NoFileExists(t, f.input)
	assert.FileExists(t, res.ArchivePath)

	archived, err := filepath.Glob(filepath.Join(f.cfg.OutputArchiveDir, "*", "*", "*", "*.xml"))
	require.NoError(t, err)
	assert.Len(t, archived, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Invoices.WithLabelValues("trucking", metrics.ResultExported)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transmissions.WithLabelValues(metrics.TransmitSent)))
}

func TestRunInvalidDocumentIsWrittenButNotTransmitted(t *testing.T) {
	f := newFixture(t, "trucking_bad_date.csv",
		"InvoiceNumber,CustomerNbr,IssueDate,Amount,Service,BusinessType\nF-9,1,2035-12-31,10,SRV100,IMPORT\n")
	tx := &fakeTransmitter{}
	m := metrics.New()

	res := f.converter(WithTransmitter(tx), WithMetrics(m)).Run(context.Background())
	require.NoError(t, res.Error)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Stats.Invalid)

	ir := res.Invoices[0]
	assert.False(t, ir.Validation.IsValid)
	assert.Equal(t, []string{"Invalid year in DocumentDate: 2035 (expected 2020-2030)"}, ir.Validation.Errors)
	assert.Nil(t, ir.Transmission)
	assert.Nil(t, ir.Invoice.Transmission)
	assert.False(t, ir.Exported())
	assert.FileExists(t, ir.OutputFile)
	assert.Empty(t, tx.sent)

	report, err := os.ReadFile(ir.ErrorLog)
	require.NoError(t, err)
	assert.Contains(t, string(report), "Invalid year in DocumentDate")

	assert.FileExists(t, f.input)
	assert.Empty(t, res.ArchivePath)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transmissions.WithLabelValues(metrics.TransmitSkipped)))
}

func TestRunStopsOnConstructionErrorWithoutContinueOnError(t *testing.T) {
	f := newFixture(t, "trucking_domestic.csv", strings.Join([]string{
		"InvoiceNumber,CustomerNbr,IssueDate,Amount,Service,BusinessType",
		"F-1,1,2025-07-04,10,SRV100,DOMESTIC",
		"F-2,1,2025-07-04,10,SRV100,IMPORT",
	}, "\n"))
	f.cfg.ContinueOnError = false

	res := f.converter().Run(context.Background())
	require.Error(t, res.Error)
	assert.True(t, errors.Is(res.Error, sapxml.ErrInvalidBusinessType))
	assert.Len(t, res.Invoices, 1)
	assert.Empty(t, res.Invoices[0].OutputFile)
	assert.False(t, res.Success)

	entries, err := os.ReadDir(f.cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunContinuesPastConstructionError(t *testing.T) {
	f := newFixture(t, "trucking_domestic.csv", strings.Join([]string{
		"InvoiceNumber,CustomerNbr,IssueDate,Amount,Service,BusinessType",
		"F-1,1,2025-07-04,10,SRV100,DOMESTIC",
		"F-2,1,2025-07-04,10,SRV100,IMPORT",
	}, "\n"))

	res := f.converter().Run(context.Background())
	require.NoError(t, res.Error)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Equal(t, 1, res.Stats.Exported)
	assert.False(t, res.Success)
	assert.FileExists(t, res.Invoices[1].OutputFile)
}

func TestRunRecordsFailedTransmission(t *testing.T) {
	f := newFixture(t, "trucking_july.csv", twoInvoices)
	tx := &fakeTransmitter{err: errors.New("connection refused")}

	res := f.converter(WithTransmitter(tx)).Run(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Stats.Failed)

	ir := res.Invoices[0]
	require.NotNil(t, ir.Invoice.Transmission)
	assert.False(t, ir.Invoice.Transmission.Sent)
	assert.NoFileExists(t, ir.OutputFile)
	assert.FileExists(t, f.input)

	entries, err := os.ReadDir(f.cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunSameInvoiceInTwoFilesKeepsBothOutputs(t *testing.T) {
	f := newFixture(t, "trucking_a.csv", twoInvoices)
	other := filepath.Join(f.cfg.InputDir, "trucking_b.csv")
	require.NoError(t, os.WriteFile(other, []byte(twoInvoices), 0o644))

	modules := config.BuiltinModules()
	second := New(other, modules["trucking"], f.cfg, f.files, WithModules(modules))
	second.now = func() time.Time { return fixedNow }

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, c := range []*Converter{f.converter(), second} {
		wg.Add(1)
		go func(i int, c *Converter) {
			defer wg.Done()
			results[i] = c.Run(context.Background())
		}(i, c)
	}
	wg.Wait()

	outputs := map[string]bool{}
	for _, res := range results {
		require.True(t, res.Success)
		for _, ir := range res.Invoices {
			assert.FileExists(t, ir.OutputFile)
			outputs[ir.OutputFile] = true
		}
	}
	assert.Len(t, outputs, 4)
	assert.True(t, outputs[filepath.Join(f.cfg.OutputDir, "LogisticARInvoice_F-DHL-01250_20250704134509_2.xml")])
}

func TestRunDryRunWritesNothing(t *testing.T) {
	f := newFixture(t, "trucking_july.csv", twoInvoices)
	tx := &fakeTransmitter{}

	res := f.converter(WithTransmitter(tx), WithDryRun(true)).Run(context.Background())
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Stats.Exported)
	assert.True(t, res.Invoices[0].Validation.IsValid)
	assert.Empty(t, res.Invoices[0].OutputFile)
	assert.Empty(t, tx.sent)
	assert.FileExists(t, f.input)

	entries, err := os.ReadDir(f.cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunUsesInvoiceModule(t *testing.T) {
	f := newFixture(t, "trucking_mixed.csv",
		"InvoiceNumber,CustomerNbr,IssueDate,Amount,Service,BusinessType,Module\nF-1,1,2025-07-04,10,SRV100,IMPORT,agency\n")

	res := f.converter().Run(context.Background())
	require.NoError(t, res.Error)

	b, err := os.ReadFile(res.Invoices[0].OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<ProfitCenter>"+sapxml.AgencyDefaults.ProfitCenter+"</ProfitCenter>")
}

func TestRunLoadFailure(t *testing.T) {
	f := newFixture(t, "trucking_july.csv", "InvoiceNumber,Amount\nF-1,abc\n")
	res := f.converter().Run(context.Background())
	require.Error(t, res.Error)
	assert.False(t, res.Success)
	assert.Empty(t, res.Invoices)
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, "trucking_july.csv", twoInvoices)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.converter().Run(ctx)
	require.Error(t, res.Error)
	assert.ErrorIs(t, res.Error, context.Canceled)
}
