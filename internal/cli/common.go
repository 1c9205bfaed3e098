// Package cli holds the pieces shared by the exprtree command: version
// information, logging and configuration.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"

	"github.com/orizon-lang/exprtree/internal/ast"
)

// Version information for the CLI
const (
	Version   = "1.0.0"
	BuildDate = "2026-10-18"
	CommitSHA = "unknown" // Will be set during build
)

// VersionInfo contains version and build information
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	CommitSHA string `json:"commit_sha"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns structured version information
func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version:   Version,
		BuildDate: BuildDate,
		CommitSHA: CommitSHA,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// PrintVersion writes version information to w, as JSON when jsonOutput is set.
func PrintVersion(w io.Writer, toolName string, jsonOutput bool) error {
	info := GetVersionInfo()

	if jsonOutput {
		data, err := json.MarshalIndent(map[string]interface{}{
			"tool":         toolName,
			"version_info": info,
		}, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshaling version info")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "%s v%s\n", toolName, info.Version)
	fmt.Fprintf(w, "Build Date: %s\n", info.BuildDate)
	if info.CommitSHA != "unknown" && info.CommitSHA != "" {
		fmt.Fprintf(w, "Commit: %s\n", info.CommitSHA)
	}
	fmt.Fprintf(w, "Go Version: %s\n", info.GoVersion)
	_, err := fmt.Fprintf(w, "Platform: %s/%s\n", info.Platform, info.Arch)
	return err
}

// ExitWithError prints an error message and exits with code 1
func ExitWithError(format string, args ...interface{}) {
	ExitWithCode(1, "Error: "+format, args...)
}

// ExitWithCode exits with the specified code and optional message
func ExitWithCode(code int, format string, args ...interface{}) {
	if format != "" {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	os.Exit(code)
}

// Logger provides leveled logging for the CLI. Info lines need Verbose and
// Debug lines need DebugMode; warnings and errors are always written.
type Logger struct {
	Verbose   bool
	DebugMode bool
	Out       io.Writer

	now func() time.Time
}

// NewLogger creates a logger writing to stderr
func NewLogger(verbose, debug bool) *Logger {
	return &Logger{
		Verbose:   verbose,
		DebugMode: debug,
		Out:       os.Stderr,
	}
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.Verbose {
		l.log("INFO", format, args...)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.DebugMode {
		l.log("DEBUG", format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log("WARN", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

func (l *Logger) log(level, format string, args ...interface{}) {
	out := l.Out
	if out == nil {
		out = os.Stderr
	}
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", level, now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

// Config is the on-disk configuration of the exprtree command. Flags given
// on the command line override it.
type Config struct {
	Verbose           bool   `json:"verbose"`
	Debug             bool   `json:"debug"`
	OptimizationLevel string `json:"optimization_level"`
	Concurrency       int    `json:"concurrency"`
	MaxIterations     int    `json:"max_iterations"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		OptimizationLevel: ast.OptimizationDefault.String(),
		MaxIterations:     ast.DefaultMaxIterations,
	}
}

// LoadConfig loads configuration from file. A missing file yields the
// defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if oserror.IsNotExist(err) {
			return config, nil
		}
		return nil, errors.Wrap(err, "failed to read config file")
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", configPath)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", configPath)
	}

	return config, nil
}

// Validate checks field ranges and the optimization level name.
func (c *Config) Validate() error {
	if _, err := ast.ParseOptimizationLevel(c.OptimizationLevel); err != nil {
		return err
	}
	if c.Concurrency < 0 {
		return errors.Newf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.MaxIterations < 0 {
		return errors.Newf("max_iterations must not be negative, got %d", c.MaxIterations)
	}
	return nil
}

// Level returns the parsed optimization level.
func (c *Config) Level() ast.OptimizationLevel {
	level, err := ast.ParseOptimizationLevel(c.OptimizationLevel)
	if err != nil {
		return ast.OptimizationDefault
	}
	return level
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}
