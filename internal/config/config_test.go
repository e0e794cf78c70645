package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightbill/sap-invoice-export/internal/sapxml"
	"github.com/freightbill/sap-invoice-export/internal/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMainConfigDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "input_dir: ./in\n")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./in", cfg.InputDir)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, "current", cfg.Schema)
	assert.Equal(t, sapxml.DefaultNamespace, cfg.Namespace)
	assert.Equal(t, sapxml.DefaultProtocol, cfg.Protocol)
	assert.Equal(t, sapxml.DefaultFileNameFormat, cfg.FileNameFormat)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.True(t, cfg.ContinueOnError)
	assert.Equal(t, 21, cfg.FTP.Port)
	assert.Equal(t, 30*time.Second, cfg.FTP.Timeout)
	assert.Equal(t, ".part", cfg.FTP.TempSuffix)
	assert.False(t, cfg.S3.Enabled)
}

func TestLoadMainConfigFileAndEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
schema: legacy
max_concurrency: 2
protocol:
  source_system: PORTAL
ftp:
  enabled: true
  host: sap-ftp.internal
  port: 2121
  retry_delay: 250ms
`)
	t.Setenv("SAPEXPORT_FTP_PASSWORD", "s3cret")
	t.Setenv("SAPEXPORT_S3_BUCKET", "archive")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "legacy", cfg.Schema)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, "PORTAL", cfg.Protocol.SourceSystem)
	assert.Equal(t, sapxml.DefaultProtocol.TechnicalContact, cfg.Protocol.TechnicalContact)
	assert.Equal(t, "sap-ftp.internal:2121", cfg.FTP.Addr())
	assert.Equal(t, 250*time.Millisecond, cfg.FTP.RetryDelay)
	assert.Equal(t, "s3cret", cfg.FTP.Password)
	assert.Equal(t, "archive", cfg.S3.Bucket)
}

func TestLoadMainConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"schema":      "schema: v3\n",
		"concurrency": "max_concurrency: 0\n",
		"ftp host":    "ftp:\n  enabled: true\n",
		"s3 bucket":   "s3:\n  enabled: true\n",
		"log level":   "log_level: loud\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", content)
			_, err := LoadMainConfig(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadMainConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSerializerOptions(t *testing.T) {
	cfg := &MainConfig{Schema: "legacy", Namespace: "urn:x", Protocol: sapxml.Protocol{SourceSystem: "A", TechnicalContact: "B"}}
	opts, err := cfg.SerializerOptions(BuiltinModules()["agency"])
	require.NoError(t, err)
	assert.Equal(t, sapxml.Legacy, opts.Profile)
	assert.Equal(t, sapxml.AgencyDefaults, opts.Defaults)
	assert.Equal(t, "urn:x", opts.Namespace)
	assert.Equal(t, "A", opts.Protocol.SourceSystem)
}

func TestLoadModuleConfigs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trucking.yaml", `
defaults:
  profit_center: PAPANC4401
transformation_rules:
  - field: Service
    actions:
      - type: uppercase
`)
	writeFile(t, dir, "warehouse.yml", `
module: Warehouse
file_matching_patterns: ["wh_*.csv"]
csv_settings:
  delimiter: ";"
column_aliases:
  Factura: InvoiceNumber
defaults:
  profit_center: PAPANC4900
`)

	modules, err := LoadModuleConfigs(dir)
	require.NoError(t, err)
	require.Len(t, modules, 4)

	trucking := modules["trucking"]
	assert.Equal(t, "PAPANC4401", trucking.Defaults.ProfitCenter)
	assert.Equal(t, sapxml.TruckingDefaults.InternalOrder, trucking.Defaults.InternalOrder)
	assert.Equal(t, sapxml.BaseDefaults.CompanyCode, trucking.Defaults.CompanyCode)
	assert.Equal(t, BuiltinModules()["trucking"].FileMatchingPatterns, trucking.FileMatchingPatterns)
	require.Len(t, trucking.TransformationRules, 1)
	assert.Equal(t, "uppercase", trucking.TransformationRules[0].Actions[0].Type)

	wh := modules["warehouse"]
	assert.Equal(t, "PAPANC4900", wh.Defaults.ProfitCenter)
	assert.Equal(t, "O7", wh.Defaults.TaxCode)
	assert.Equal(t, ";", wh.CSVSettings.Delimiter)
	assert.Equal(t, "InvoiceNumber", wh.ColumnAliases["Factura"])

	assert.Equal(t, sapxml.AgencyDefaults, modules["agency"].Defaults)
}

func TestCustomModuleWithoutAllocationDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "warehouse.yaml", `
defaults:
  profit_center: PAPANC4900
`)
	writeFile(t, dir, "rail.yaml", `
defaults:
  income_rebate_code: RAL
  profit_center: PAPANC4800
  internal_order: PA48RAL001
  bundle: RAL
  activity: RAL
  pillar: NLOG
  bu_country: PA
  service_country: PA
  repair_type: NA
  client_type: EXT
`)
	modules, err := LoadModuleConfigs(dir)
	require.NoError(t, err)
	assert.Contains(t, modules["warehouse"].Defaults.Unset(), "IncomeRebateCode")
	assert.Empty(t, modules["rail"].Defaults.Unset())

	inv := types.Invoice{
		Number:      "F-1",
		CustomerNbr: "1234567890",
		IssueDate:   time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC),
		Items: []types.LineItem{{
			Amount:       decimal.NewNullDecimal(decimal.NewFromInt(10)),
			Service:      "SRV100",
			BusinessType: types.Import,
		}},
	}
	cfg := &MainConfig{Schema: "current"}

	opts, err := cfg.SerializerOptions(modules["warehouse"])
	require.NoError(t, err)
	inv.Module = "warehouse"
	_, err = sapxml.Serialize(inv, opts)
	assert.True(t, errors.Is(err, sapxml.ErrMissingRequiredField))

	opts, err = cfg.SerializerOptions(modules["rail"])
	require.NoError(t, err)
	inv.Module = "rail"
	out, err := sapxml.Serialize(inv, opts)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<ProfitCenter>PAPANC4800</ProfitCenter>")
}

func TestLoadModuleConfigsMissingDir(t *testing.T) {
	modules, err := LoadModuleConfigs(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Len(t, modules, 3)
}

func TestLoadModuleConfigsBadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "defaults: [unclosed\n")
	_, err := LoadModuleConfigs(dir)
	assert.Error(t, err)
}

func TestFindModule(t *testing.T) {
	modules := BuiltinModules()

	m, err := FindModule(modules, "/data/in/TRK_2025-07.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "trucking", m.Name)

	m, err = FindModule(modules, "agency_july.json")
	require.NoError(t, err)
	assert.Equal(t, "agency", m.Name)

	m, err = FindModule(modules, "shc_0001.csv")
	require.NoError(t, err)
	assert.Equal(t, "shipchandler", m.Name)

	_, err = FindModule(modules, "random.csv")
	assert.Error(t, err)
}
