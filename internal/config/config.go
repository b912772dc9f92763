// Package config loads the allocv configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"alloc-validator/internal/diagnostic"
)

// Diagnostic codes reported by Validate.
const (
	CodeMissingDataDir   = "missing_data_dir"
	CodeInvalidLogLevel  = "invalid_log_level"
	CodeInvalidLogFormat = "invalid_log_format"
	CodeInvalidBaseURL   = "invalid_base_url"
	CodeInvalidTimeout   = "invalid_timeout"
	CodeNoTranslator     = "no_translator"
)

const (
	// DefaultDataDir is the data directory used when none is configured.
	DefaultDataDir = ".allocv"
	// DefaultTranslatorTimeout bounds each translator request.
	DefaultTranslatorTimeout = 30 * time.Second

	// Log formats accepted by NewLogger.
	FormatText = "text"
	FormatJSON = "json"
)

const defaultConfigYAML = `# allocv configuration
data_dir: .allocv

# Reject unparseable numbers instead of storing 0.
strict_numbers: false

log:
  level: info   # debug, info, warn, error
  format: text  # text or json

# Translation service used by "rules translate". Leave base_url empty to disable.
translator:
  base_url: ""
  timeout: 30s
`

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TranslatorConfig points at the translation service.
type TranslatorConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config models the configuration file.
type Config struct {
	// DataDir holds one YAML document per collection. Relative paths are
	// resolved against the directory of the config file.
	DataDir       string           `yaml:"data_dir"`
	StrictNumbers bool             `yaml:"strict_numbers"`
	Log           LogConfig        `yaml:"log"`
	Translator    TranslatorConfig `yaml:"translator"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DataDir: DefaultDataDir,
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
		Translator: TranslatorConfig{
			Timeout: DefaultTranslatorTimeout,
		},
	}
}

// Load reads path. A missing file yields Default with DataDir resolved
// against the file's directory. Validation errors are returned as an error;
// warnings are returned in the diagnostics.
func Load(path string) (Config, *diagnostic.Diagnostics, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.normalize(filepath.Dir(path))

	diags := cfg.Validate()
	if diags.HasErrors() {
		return Config{}, diags, fmt.Errorf("config %s: %w", path, diags.Error())
	}

	return cfg, diags, nil
}

// WriteDefault writes a commented default configuration to path unless a
// file already exists there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	return nil
}

func (c *Config) normalize(base string) {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir != "" && !filepath.IsAbs(c.DataDir) {
		c.DataDir = filepath.Join(base, c.DataDir)
	}

	if c.DataDir != "" {
		c.DataDir = filepath.Clean(c.DataDir)
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Translator.BaseURL = strings.TrimSpace(c.Translator.BaseURL)

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Log.Format == "" {
		c.Log.Format = FormatText
	}

	if c.Translator.Timeout == 0 {
		c.Translator.Timeout = DefaultTranslatorTimeout
	}
}

// Validate reports every problem with c.
func (c Config) Validate() *diagnostic.Diagnostics {
	diags := &diagnostic.Diagnostics{}

	if c.DataDir == "" {
		diags.AddError(CodeMissingDataDir, "data_dir is required", "config", "data_dir")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		diags.AddError(CodeInvalidLogLevel, err.Error(), "config", "log.level")
	}

	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		diags.AddError(CodeInvalidLogFormat,
			fmt.Sprintf("log format must be %q or %q, got %q", FormatText, FormatJSON, c.Log.Format),
			"config", "log.format")
	}

	if c.Translator.Timeout < 0 {
		diags.AddError(CodeInvalidTimeout, "translator timeout cannot be negative", "config", "translator.timeout")
	}

	if c.Translator.BaseURL == "" {
		diags.AddInfo(CodeNoTranslator, "no translator configured; translation commands are disabled", "config", "translator.base_url")
	} else if u, err := url.Parse(c.Translator.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		diags.AddError(CodeInvalidBaseURL,
			fmt.Sprintf("translator base_url must be an absolute http(s) URL, got %q", c.Translator.BaseURL),
			"config", "translator.base_url")
	}

	return diags
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}

	return l, nil
}

// NewLogger builds the logger described by c writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if c.Log.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
