// =============================================================================
// Donation Ledger - Configuration Module
// =============================================================================
//
// This module loads and validates all configuration. It handles both the main
// application configuration and the per-source intake profiles.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults (SetDefault below)
//   2. Main config file (config.yaml, or the path given with --config)
//   3. Environment variables prefixed DONLEDGER_ (ledger.dsn -> DONLEDGER_LEDGER_DSN)
//   4. Named settings stored in the ledger, for pipeline keys left empty
//      (see resolve.go)
//
// Source profiles (sources_dir/*.yaml) are loaded separately, see sources.go.
//
// =============================================================================

package config

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "DONLEDGER"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the full application configuration.
type Config struct {
	Ledger     LedgerConfig   `yaml:"ledger" mapstructure:"ledger"`
	Files      FilesConfig    `yaml:"files" mapstructure:"files"`
	SourcesDir string         `yaml:"sources_dir" mapstructure:"sources_dir"`
	Ack        AckConfig      `yaml:"ack" mapstructure:"ack"`
	Mail       MailConfig     `yaml:"mail" mapstructure:"mail"`
	Report     ReportConfig   `yaml:"report" mapstructure:"report"`
	Schedule   ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Server     ServerConfig   `yaml:"server" mapstructure:"server"`
	Log        LogConfig      `yaml:"log" mapstructure:"log"`
}

// LedgerConfig selects and tunes the ledger store.
type LedgerConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" mapstructure:"driver"`

	// DSN is the sqlite file path or the postgres connection string.
	DSN string `yaml:"dsn" mapstructure:"dsn"`

	// InsertionPoint is the ledger position new blocks are inserted at.
	// Position 1 is the top of the ledger.
	InsertionPoint int `yaml:"insertion_point" mapstructure:"insertion_point"`

	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
}

// FilesConfig locates the intake, processed and output areas.
type FilesConfig struct {
	// Backend is "local" (areas are directories) or "s3" (areas are key prefixes).
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Intake is the area scanned for pending source files.
	Intake string `yaml:"intake" mapstructure:"intake"`

	// Processed receives source files after a successful import.
	Processed string `yaml:"processed" mapstructure:"processed"`

	// Output receives generated acknowledgement documents and summaries.
	Output string `yaml:"output" mapstructure:"output"`

	S3 S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config holds the bucket used by the s3 file backend.
type S3Config struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Region string `yaml:"region" mapstructure:"region"`
}

// AckConfig configures acknowledgement generation.
type AckConfig struct {
	// Template is the path to the acknowledgement HTML template.
	// Empty selects the built-in template.
	Template string `yaml:"template" mapstructure:"template"`

	// Subject is a text/template for the email subject line.
	Subject string `yaml:"subject" mapstructure:"subject"`

	SenderName string `yaml:"sender_name" mapstructure:"sender_name"`
	ReplyTo    string `yaml:"reply_to" mapstructure:"reply_to"`
	OrgName    string `yaml:"org_name" mapstructure:"org_name"`

	// ExcludedFundEmails lists donor advised fund addresses whose gifts are
	// acknowledged by the fund itself. D1 records from these addresses are
	// skipped entirely.
	ExcludedFundEmails []string `yaml:"excluded_fund_emails" mapstructure:"excluded_fund_emails"`
}

// MailConfig configures the outgoing mail service.
type MailConfig struct {
	// Backend is "smtp" or "log" (log only, nothing is sent).
	Backend  string `yaml:"backend" mapstructure:"backend"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`

	// TLS is "mandatory", "opportunistic" or "none".
	TLS string `yaml:"tls" mapstructure:"tls"`

	// RatePerMinute caps outgoing messages. Zero disables pacing.
	RatePerMinute int `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
}

// ReportConfig configures run summaries.
type ReportConfig struct {
	// Recipients receive emailed summaries of scheduled runs.
	Recipients []string `yaml:"recipients" mapstructure:"recipients"`

	// WriteSummaryFile stores a text copy of each summary in the output area.
	WriteSummaryFile bool `yaml:"write_summary_file" mapstructure:"write_summary_file"`
}

// ScheduleConfig holds cron specs for the schedule command. Empty disables a job.
type ScheduleConfig struct {
	Import      string `yaml:"import" mapstructure:"import"`
	Acknowledge string `yaml:"acknowledge" mapstructure:"acknowledge"`
	Rollup      string `yaml:"rollup" mapstructure:"rollup"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// Load reads configuration from file and environment.
//
// PARAMETERS:
//   - path: explicit config file path. When empty, config.yaml is searched for
//     in the working directory and a missing file is not an error.
//
// RETURNS:
//   - The loaded configuration with defaults applied.
//   - An error if the file cannot be read or decoded.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// applyDefaults registers every key so environment overrides work for keys
// that have no value in the config file.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.dsn", "donations.db")
	v.SetDefault("ledger.insertion_point", 0)
	v.SetDefault("ledger.max_conns", 4)

	v.SetDefault("files.backend", "local")
	v.SetDefault("files.intake", "")
	v.SetDefault("files.processed", "")
	v.SetDefault("files.output", "")
	v.SetDefault("files.s3.bucket", "")
	v.SetDefault("files.s3.region", "us-east-1")

	v.SetDefault("sources_dir", "./sources")

	v.SetDefault("ack.template", "")
	v.SetDefault("ack.subject", "Thank you for your gift to {{.OrgName}}")
	v.SetDefault("ack.sender_name", "")
	v.SetDefault("ack.reply_to", "")
	v.SetDefault("ack.org_name", "")
	v.SetDefault("ack.excluded_fund_emails", []string{})

	v.SetDefault("mail.backend", "smtp")
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.tls", "mandatory")
	v.SetDefault("mail.rate_per_minute", 20)

	v.SetDefault("report.recipients", []string{})
	v.SetDefault("report.write_summary_file", false)

	v.SetDefault("schedule.import", "0 6 * * *")
	v.SetDefault("schedule.acknowledge", "30 6 * * *")
	v.SetDefault("schedule.rollup", "0 7 15 1 *")

	v.SetDefault("server.port", 8080)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// =============================================================================
// LOGGING
// =============================================================================

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
