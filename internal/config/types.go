// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/prometheus/common/model"
)

const (
	// LogLevelDebug logs everything, including per-module decisions.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs lifecycle events.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs skipped and failed modules only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidCompressionLevel is returned when a CompressionLevel is out
	// of range.
	ErrInvalidCompressionLevel = errors.New("invalid compression level")
	// ErrInvalidSpillDir is returned when a SpillDir value is whitespace-only.
	ErrInvalidSpillDir = errors.New("invalid spill dir")
	// ErrInvalidMetricsNamespace is returned when a metrics namespace is not a
	// valid Prometheus metric name prefix.
	ErrInvalidMetricsNamespace = errors.New("invalid metrics namespace")
	// ErrInvalidServeAddr is returned when the host address is not a
	// host:port pair.
	ErrInvalidServeAddr = errors.New("invalid serve address")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of log records that are written.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// CompressionLevel is the deflate level of rewritten manifests, from
	// HuffmanOnly (-2) to BestCompression (9); -1 is the default level.
	CompressionLevel int

	// SpillDir is the directory for temporary transformed archives.
	// The zero value means the system temporary directory.
	SpillDir string

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// LogLevel sets the minimum log level
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// Transform configures archive transformation
		Transform TransformConfig `json:"transform" mapstructure:"transform"`
		// Scan configures dependency scanning
		Scan ScanConfig `json:"scan" mapstructure:"scan"`
		// Repository configures the module repository
		Repository RepositoryConfig `json:"repository" mapstructure:"repository"`
		// Metrics configures metrics collection
		Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
		// Serve configures the web module host
		Serve ServeConfig `json:"serve" mapstructure:"serve"`
	}

	// TransformConfig configures archive transformation.
	TransformConfig struct {
		// DefaultWABHeaders fills Bundle-SymbolicName, Bundle-Version and
		// Web-ContextPath on archives that are already web modules
		DefaultWABHeaders bool `json:"default_wab_headers" mapstructure:"default_wab_headers"`
		// SpillDir overrides where transformed archives are buffered
		SpillDir SpillDir `json:"spill_dir" mapstructure:"spill_dir"`
		// CompressionLevel is the deflate level of the rewritten manifest
		CompressionLevel CompressionLevel `json:"compression_level" mapstructure:"compression_level"`
	}

	// ScanConfig configures dependency scanning.
	ScanConfig struct {
		// Skip names modules whose content is never scanned
		Skip []string `json:"skip" mapstructure:"skip"`
	}

	// RepositoryConfig configures the module repository.
	RepositoryConfig struct {
		// Dir is the directory modules are loaded from
		Dir string `json:"dir" mapstructure:"dir"`
	}

	// MetricsConfig configures metrics collection.
	MetricsConfig struct {
		// Namespace prefixes every metric name
		Namespace string `json:"namespace" mapstructure:"namespace"`
	}

	// ServeConfig configures the web module host.
	ServeConfig struct {
		// Addr is the TCP address the host listens on
		Addr string `json:"addr" mapstructure:"addr"`
		// Watch redeploys modules when the repository directory changes
		Watch bool `json:"watch" mapstructure:"watch"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: LogLevelInfo,
		Transform: TransformConfig{
			DefaultWABHeaders: false,
			CompressionLevel:  flate.DefaultCompression,
		},
		Scan: ScanConfig{
			Skip: []string{},
		},
		Repository: RepositoryConfig{
			Dir: ".",
		},
		Metrics: MetricsConfig{
			Namespace: "wabkit",
		},
		Serve: ServeConfig{
			Addr:  "127.0.0.1:8080",
			Watch: true,
		},
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// IsValid returns whether the level is one klauspost/compress/flate
// accepts.
func (l CompressionLevel) IsValid() (bool, []error) {
	if l < flate.HuffmanOnly || l > flate.BestCompression {
		return false, []error{fmt.Errorf("%w: %d (valid: %d to %d)", ErrInvalidCompressionLevel, l, flate.HuffmanOnly, flate.BestCompression)}
	}
	return true, nil
}

// String returns the string representation of the SpillDir.
func (d SpillDir) String() string { return string(d) }

// IsValid returns whether the SpillDir is valid. The zero value is valid;
// other values must not be whitespace-only.
func (d SpillDir) IsValid() (bool, []error) {
	if d != "" && strings.TrimSpace(string(d)) == "" {
		return false, []error{fmt.Errorf("%w: %q", ErrInvalidSpillDir, d)}
	}
	return true, nil
}

// IsValid returns whether every field of the Config is valid.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Transform.SpillDir.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Transform.CompressionLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if !model.IsValidLegacyMetricName(c.Metrics.Namespace) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidMetricsNamespace, c.Metrics.Namespace))
	}
	if _, _, err := net.SplitHostPort(c.Serve.Addr); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidServeAddr, err))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
