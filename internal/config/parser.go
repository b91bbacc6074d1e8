package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/forge-install/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser evaluates Lua config files with platform detection.
type Parser struct {
	detector platform.Detector
	logger   Logger
}

// NewParser creates a config parser. A nil detector skips the platform
// table; a nil logger discards warnings.
func NewParser(detector platform.Detector, logger Logger) *Parser {
	if logger == nil {
		logger = defaultLogger()
	}
	return &Parser{detector: detector, logger: logger}
}

// ParseFile reads and parses the config file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(data) > MaxConfigFileSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s exceeds %d bytes", path, MaxConfigFileSize),
		}
	}

	p.logger.Debug("parsing config file", "path", path, "bytes", len(data))
	return p.ParseString(ctx, string(data))
}

// ParseString parses a Lua config from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("config evaluation aborted: %w", ctx.Err())
		}
		return nil, &ParseError{
			Message: "Lua evaluation error",
			Detail:  err.Error(),
		}
	}

	cfg, err := p.extractConfig(L)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global "installer" table over the defaults.
func (p *Parser) extractConfig(L *lua.LState) (*Config, error) {
	installerVal := L.GetGlobal(luaGlobalInstaller)
	table, ok := installerVal.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'installer' table",
			Detail:  fmt.Sprintf("expected table, got %s", installerVal.Type()),
		}
	}

	cfg := Default()
	var err error

	table.ForEach(func(key, value lua.LValue) {
		if err != nil {
			return
		}
		name, isString := key.(lua.LString)
		if !isString {
			err = &ValidationError{Message: fmt.Sprintf("non-string key %s in installer table", key)}
			return
		}

		switch field := string(name); field {
		case luaFieldVersionInfo:
			err = setString(field, value, &cfg.VersionInfoURL)
		case luaFieldProduct:
			err = setString(field, value, &cfg.Product)
		case luaFieldInstallDir:
			err = setString(field, value, &cfg.InstallDir)
		case luaFieldCanonicalDir:
			err = setString(field, value, &cfg.CanonicalDir)
		case luaFieldSupport:
			err = setString(field, value, &cfg.SupportContact)
		case luaFieldTimeout:
			err = setSeconds(field, value, &cfg.Timeout)
		case luaFieldStrict:
			err = setBool(field, value, &cfg.StrictPlatform)
		case luaFieldVerify:
			err = setCommand(field, value, &cfg.VerifyCommand)
		case luaFieldLog:
			err = extractLog(value, &cfg.Log)
		default:
			p.logger.Warn("ignoring unknown config field", "field", field)
		}
	})
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func extractLog(value lua.LValue, log *LogConfig) error {
	table, ok := value.(*lua.LTable)
	if !ok {
		return typeError(luaFieldLog, "table", value)
	}
	if err := setString(luaFieldLog+"."+luaFieldLogLevel, table.RawGetString(luaFieldLogLevel), &log.Level); err != nil {
		return err
	}
	return setString(luaFieldLog+"."+luaFieldLogFormat, table.RawGetString(luaFieldLogFormat), &log.Format)
}

// setString assigns a Lua string to dst. nil leaves dst unchanged.
func setString(field string, value lua.LValue, dst *string) error {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LString:
		*dst = strings.TrimSpace(string(v))
		return nil
	default:
		return typeError(field, "string", value)
	}
}

func setBool(field string, value lua.LValue, dst *bool) error {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		*dst = bool(v)
		return nil
	default:
		return typeError(field, "boolean", value)
	}
}

func setSeconds(field string, value lua.LValue, dst *time.Duration) error {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LNumber:
		*dst = time.Duration(float64(v) * float64(time.Second))
		return nil
	default:
		return typeError(field, "number", value)
	}
}

// setCommand accepts an array of strings or a single whitespace-separated
// string.
func setCommand(field string, value lua.LValue, dst *[]string) error {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LString:
		*dst = strings.Fields(string(v))
		return nil
	case *lua.LTable:
		n := v.Len()
		args := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			arg, ok := v.RawGetInt(i).(lua.LString)
			if !ok {
				return typeError(fmt.Sprintf("%s[%d]", field, i), "string", v.RawGetInt(i))
			}
			args = append(args, string(arg))
		}
		*dst = args
		return nil
	default:
		return typeError(field, "table of strings", value)
	}
}

func typeError(field, want string, got lua.LValue) error {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

// FormatError formats a config error for user display. In verbose mode the
// raw Lua error is shown; otherwise the stack traceback is dropped.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
