// =============================================================================
// SAP Invoice Export - Configuration Module
// =============================================================================
//
// This module loads the application configuration and the per-module invoice
// profiles.
//
// CONFIGURATION SOURCES:
//   1. Main config (config.yaml, optional): directories, file naming, schema
//      profile, FTP/S3/metrics settings. Read through viper, so every key can
//      be overridden from the environment with the SAPEXPORT_ prefix
//      (SAPEXPORT_FTP_PASSWORD, SAPEXPORT_S3_BUCKET, ...). A .env file in the
//      working directory is loaded first.
//   2. Module configs (configs/*.yaml): one file per business module
//      (trucking, agency, shipchandler, ...). Each carries the SAP defaults
//      record, the input file patterns and the input transformation rules.
//      Files are merged over the built-in profiles.
//
// =============================================================================

package config

import (
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/freightbill/sap-invoice-export/internal/sapxml"
)

var logger = logrus.WithField("component", "config")

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "SAPEXPORT"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for invoice files (.yaml, .yml, .json, .csv, .xlsx).
	// Default: "./input"
	InputDir string `mapstructure:"input_dir"`

	// OutputDir receives the generated XML files, valid or not.
	// Default: "./output"
	OutputDir string `mapstructure:"output_dir"`

	// InputArchiveDir receives input files once every invoice in them succeeded.
	// Default: "./input_archive"
	InputArchiveDir string `mapstructure:"input_archive_dir"`

	// OutputArchiveDir receives a copy of every transmitted XML file.
	// Default: "./output_archive"
	OutputArchiveDir string `mapstructure:"output_archive_dir"`

	// ConfigsDir holds the module configuration files.
	// Default: "./configs"
	ConfigsDir string `mapstructure:"configs_dir"`

	// LogsDir receives the run summary and validation error logs.
	// Default: "./logs"
	LogsDir string `mapstructure:"logs_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `mapstructure:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// FileNameFormat is the XML file name pattern. Placeholders:
	//   {invoice}, {module}, {date}, {time}, {timestamp}, {uuid}
	// Default: sapxml.DefaultFileNameFormat
	FileNameFormat string `mapstructure:"file_name_format"`

	// Schema selects the OtherItem profile: "current" or "legacy".
	// Default: "current"
	Schema string `mapstructure:"schema"`

	// Namespace is the namespace of the root element.
	// Default: sapxml.DefaultNamespace
	Namespace string `mapstructure:"namespace"`

	// Protocol holds the SourceSystem and TechnicalContact constants.
	Protocol sapxml.Protocol `mapstructure:"protocol"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of input files processed at once.
	// Default: 4
	MaxConcurrency int `mapstructure:"max_concurrency"`

	// ContinueOnError keeps processing the remaining invoices of a file after
	// one of them fails.
	// Default: true
	ContinueOnError bool `mapstructure:"continue_on_error"`

	// =========================================================================
	// INTEGRATIONS
	// =========================================================================

	FTP     FTPConfig     `mapstructure:"ftp"`
	S3      S3Config      `mapstructure:"s3"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// FTPConfig configures delivery to the SAP inbound folder.
type FTPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	RemoteDir string `mapstructure:"remote_dir"`

	// Timeout bounds the dial and each command.
	Timeout time.Duration `mapstructure:"timeout"`

	// Retries is the number of attempts after the first one.
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// TempSuffix is appended to the remote name during upload.
	TempSuffix string `mapstructure:"temp_suffix"`
}

// Addr returns host:port.
func (c FTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// S3Config configures the remote archive of transmitted documents.
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// MetricsConfig configures the optional Pushgateway push at the end of a run.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// =============================================================================
// MODULE CONFIGURATION STRUCTURE
// =============================================================================

// ModuleConfig holds the configuration of one business module.
type ModuleConfig struct {
	// Name is the module key ("trucking", "agency", "shipchandler").
	// Defaults to the file name without extension.
	Name string `yaml:"module"`

	// Description is used in logs only.
	Description string `yaml:"description"`

	// FileMatchingPatterns are glob patterns matched against the lowercased
	// base name of an input file.
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// CSVSettings apply to .csv inputs.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// Sheet is the worksheet read from .xlsx inputs. Empty selects the first.
	Sheet string `yaml:"sheet"`

	// ColumnAliases maps input column headers to canonical column names
	// (e.g. "Factura" -> "InvoiceNumber").
	ColumnAliases map[string]string `yaml:"column_aliases"`

	// Defaults is merged over the built-in defaults of the module.
	Defaults sapxml.Defaults `yaml:"defaults"`

	// TransformationRules are applied to every input row, in order.
	TransformationRules []TransformationRule `yaml:"transformation_rules"`
}

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter separates fields. Default: ","
	Delimiter string `yaml:"delimiter"`

	// Comment marks lines to skip. Empty disables comments.
	Comment string `yaml:"comment"`
}

// TransformationRule defines the actions applied to one input column.
type TransformationRule struct {
	// Field is the canonical column name (after aliasing).
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation.
type TransformationAction struct {
	// Type is one of:
	//   trim, uppercase, lowercase, prepend_string, append_string, replace,
	//   pad_zeros_to_length, lookup, lookup_with_default, if_empty_use_default,
	//   format_date
	Type string `yaml:"type"`

	// Value is the parameter of the action: the string to add, the target
	// length, the default, or the target date layout.
	Value string `yaml:"value"`

	// Find is the substring replaced by "replace", or the source date layout
	// of "format_date".
	Find string `yaml:"find,omitempty"`

	// LookupTable is used by "lookup" and "lookup_with_default".
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// MAIN CONFIGURATION LOADING
// =============================================================================

// LoadMainConfig loads the main configuration.
//
// PARAMETERS:
//   - configPath: Path of the YAML file. Empty looks for ./config.yaml and
//     falls back to defaults when it does not exist.
//
// RETURNS:
//   - The configuration with defaults and environment overrides applied.
//   - An error if an explicitly named file cannot be read, or if the
//     resulting configuration is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configPath)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
			logger.Debug("No config file found, using defaults")
		}
	}

	var cfg MainConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", "./input")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("input_archive_dir", "./input_archive")
	v.SetDefault("output_archive_dir", "./output_archive")
	v.SetDefault("configs_dir", "./configs")
	v.SetDefault("logs_dir", "./logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("file_name_format", sapxml.DefaultFileNameFormat)
	v.SetDefault("schema", sapxml.Current.Name())
	v.SetDefault("namespace", sapxml.DefaultNamespace)
	v.SetDefault("protocol.source_system", sapxml.DefaultProtocol.SourceSystem)
	v.SetDefault("protocol.technical_contact", sapxml.DefaultProtocol.TechnicalContact)
	v.SetDefault("max_concurrency", 4)
	v.SetDefault("continue_on_error", true)

	v.SetDefault("ftp.enabled", false)
	v.SetDefault("ftp.host", "")
	v.SetDefault("ftp.port", 21)
	v.SetDefault("ftp.user", "")
	v.SetDefault("ftp.password", "")
	v.SetDefault("ftp.remote_dir", "/")
	v.SetDefault("ftp.timeout", "30s")
	v.SetDefault("ftp.retries", 2)
	v.SetDefault("ftp.retry_delay", "5s")
	v.SetDefault("ftp.temp_suffix", ".part")

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "sap-invoices")
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "sapexport")
}

// Validate checks the settings that cannot be defaulted.
func (c *MainConfig) Validate() error {
	if _, err := sapxml.ProfileByName(c.Schema); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if c.MaxConcurrency < 1 {
		return errors.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.FTP.Enabled && c.FTP.Host == "" {
		return errors.New("ftp.host is required when ftp is enabled")
	}
	if c.FTP.Retries < 0 {
		return errors.Errorf("ftp.retries must not be negative, got %d", c.FTP.Retries)
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return errors.New("s3.bucket is required when s3 is enabled")
	}
	return nil
}

// SerializerOptions returns the sapxml options for a module.
func (c *MainConfig) SerializerOptions(module *ModuleConfig) (sapxml.Options, error) {
	profile, err := sapxml.ProfileByName(c.Schema)
	if err != nil {
		return sapxml.Options{}, err
	}
	return sapxml.Options{
		Profile:   profile,
		Defaults:  module.Defaults,
		Protocol:  c.Protocol,
		Namespace: c.Namespace,
	}, nil
}

// =============================================================================
// MODULE CONFIGURATION LOADING
// =============================================================================

// BuiltinModules returns the built-in module profiles.
func BuiltinModules() map[string]*ModuleConfig {
	return map[string]*ModuleConfig{
		"trucking": {
			Name:                 "trucking",
			Description:          "Trucking and container transport",
			FileMatchingPatterns: []string{"trucking*", "trk_*"},
			Defaults:             sapxml.TruckingDefaults,
		},
		"agency": {
			Name:                 "agency",
			Description:          "Shipping agency services",
			FileMatchingPatterns: []string{"agency*", "agy_*"},
			Defaults:             sapxml.AgencyDefaults,
		},
		"shipchandler": {
			Name:                 "shipchandler",
			Description:          "Ship chandling",
			FileMatchingPatterns: []string{"shipchandler*", "shc_*"},
			Defaults:             sapxml.ShipChandlerDefaults,
		},
	}
}

// LoadModuleConfigs loads every *.yaml and *.yml file of configsDir over the
// built-in profiles. A missing directory yields the built-ins.
func LoadModuleConfigs(configsDir string) (map[string]*ModuleConfig, error) {
	modules := BuiltinModules()

	if _, err := os.Stat(configsDir); os.IsNotExist(err) {
		logger.WithField("dir", configsDir).Debug("Module config directory not found, using built-in profiles")
		return modules, nil
	}

	files, err := filepath.Glob(filepath.Join(configsDir, "*.yaml"))
	if err != nil {
		return nil, errors.Wrap(err, "list module configs")
	}
	ymlFiles, err := filepath.Glob(filepath.Join(configsDir, "*.yml"))
	if err != nil {
		return nil, errors.Wrap(err, "list module configs")
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	for _, file := range files {
		mc, err := loadModuleConfig(file)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", file)
		}

		base := sapxml.BaseDefaults
		if builtin, ok := modules[mc.Name]; ok {
			base = builtin.Defaults
			if len(mc.FileMatchingPatterns) == 0 {
				mc.FileMatchingPatterns = builtin.FileMatchingPatterns
			}
			if mc.Description == "" {
				mc.Description = builtin.Description
			}
		}
		mc.Defaults = mc.Defaults.Merge(base)
		if unset := mc.Defaults.Unset(); len(unset) > 0 {
			logger.WithFields(logrus.Fields{"module": mc.Name, "fields": unset}).
				Warn("Module has no defaults for these fields; line items must carry them")
		}
		modules[mc.Name] = mc

		logger.WithFields(logrus.Fields{"module": mc.Name, "file": file}).Debug("Loaded module config")
	}

	return modules, nil
}

func loadModuleConfig(filePath string) (*ModuleConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	var mc ModuleConfig
	if err := yaml.Unmarshal(data, &mc); err != nil {
		return nil, errors.Wrap(err, "parse file")
	}

	if mc.Name == "" {
		mc.Name = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}
	mc.Name = strings.ToLower(mc.Name)
	if mc.CSVSettings.Delimiter == "" {
		mc.CSVSettings.Delimiter = ","
	}
	return &mc, nil
}

// FindModule returns the module whose patterns match the base name of
// filePath. Modules are tried in name order so the result is deterministic.
func FindModule(modules map[string]*ModuleConfig, filePath string) (*ModuleConfig, error) {
	name := strings.ToLower(filepath.Base(filePath))

	keys := make([]string, 0, len(modules))
	for k := range modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, pattern := range modules[k].FileMatchingPatterns {
			if ok, _ := filepath.Match(strings.ToLower(pattern), name); ok {
				return modules[k], nil
			}
		}
	}
	return nil, errors.Errorf("no module matches %s", filepath.Base(filePath))
}
