// Package config loads the installer configuration from an optional Lua
// file.
//
// The file is evaluated in a sandboxed gopher-lua VM with a read-only
// platform table injected, so a config can branch on the host:
//
//	installer = {
//	  install_dir = platform.when(platform.is_windows, "vendor\\bin") or "bin",
//	  timeout_seconds = 30,
//	}
//
// Every field is optional. Missing fields keep their defaults.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Config is the installer configuration.
type Config struct {
	VersionInfoURL string
	Product        string
	InstallDir     string
	CanonicalDir   string
	Timeout        time.Duration
	SupportContact string
	StrictPlatform bool
	VerifyCommand  []string
	Log            LogConfig
}

// LogConfig selects the logger's level and encoding.
type LogConfig struct {
	Level  string
	Format string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		VersionInfoURL: DefaultVersionInfoURL,
		Product:        DefaultProduct,
		InstallDir:     DefaultInstallDir,
		CanonicalDir:   DefaultCanonicalDir,
		Timeout:        DefaultTimeout,
		SupportContact: DefaultSupportContact,
		VerifyCommand:  slices.Clone(DefaultVerifyCommand),
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Overrides holds command-line values that take precedence over the file.
// Empty fields leave the file value in place.
type Overrides struct {
	InstallDir string
	LogLevel   string
	LogFormat  string
}

// Apply copies the non-empty override values onto c.
func (c *Config) Apply(o Overrides) {
	if o.InstallDir != "" {
		c.InstallDir = o.InstallDir
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}
}

// CanonicalPath is where the extracted distribution ends up.
func (c *Config) CanonicalPath() string {
	return filepath.Join(c.InstallDir, c.CanonicalDir)
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if err := validateURL(c.VersionInfoURL); err != nil {
		return &ValidationError{Field: luaFieldVersionInfo, Message: err.Error()}
	}

	if strings.TrimSpace(c.Product) == "" {
		return &ValidationError{Field: luaFieldProduct, Message: "product cannot be empty"}
	}

	if err := validateInstallDir(c.InstallDir); err != nil {
		return &ValidationError{Field: luaFieldInstallDir, Message: err.Error()}
	}

	if err := validateDirName(c.CanonicalDir); err != nil {
		return &ValidationError{Field: luaFieldCanonicalDir, Message: err.Error()}
	}

	if c.Timeout <= 0 {
		return &ValidationError{
			Field:   luaFieldTimeout,
			Message: fmt.Sprintf("timeout must be positive (got %s)", c.Timeout),
		}
	}

	if len(c.VerifyCommand) == 0 || strings.TrimSpace(c.VerifyCommand[0]) == "" {
		return &ValidationError{Field: luaFieldVerify, Message: "verify command cannot be empty"}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}

	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use https:// or http:// scheme (got: %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %s", raw)
	}

	return nil
}

// validateInstallDir accepts absolute paths and relative paths that stay
// under the working directory.
func validateInstallDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(dir) {
		return nil
	}

	cleaned := filepath.Clean(dir)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal not allowed: %s", dir)
	}
	return nil
}

// validateDirName requires a single path element.
func validateDirName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("directory name cannot be empty")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("must be a single directory name: %q", name)
	}
	return nil
}
