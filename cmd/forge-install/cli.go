package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ZebulonRouseFrantzich/forge-install/internal/artifact"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/config"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/logger"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/platform"
	"github.com/ZebulonRouseFrantzich/forge-install/internal/service"
)

// app holds the state shared by the root command's Before hook and the
// subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	detector platform.Detector
	runner   service.Runner

	configPath string
	overrides  config.Overrides

	cfg  *config.Config
	base *zap.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:   stdout,
		stderr:   stderr,
		detector: platform.NewDetector(),
		runner:   service.ExecRunner{},
	}
}

// run executes the command line and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	err := a.command().Run(ctx, args)
	if err != nil && a.base == nil {
		// Lua tracebacks only at debug level
		fmt.Fprintf(a.stderr, "Error: %s\n", config.FormatError(err, a.overrides.LogLevel == "debug"))
	}
	if a.base != nil {
		_ = a.base.Sync()
	}
	return exitCode(err)
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:      "forge-install",
		Usage:     "Download, verify and unpack the forge distribution",
		Version:   Version,
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to a Lua config file",
				Destination: &a.configPath,
			},
			&cli.StringFlag{
				Name:        "install-dir",
				Usage:       "Install root (default \"" + config.DefaultInstallDir + "\")",
				Destination: &a.overrides.InstallDir,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Destination: &a.overrides.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (console, json)",
				Destination: &a.overrides.LogFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, a.setup(ctx)
		},
		// Exit codes are mapped by run, never by the framework.
		ExitErrHandler: func(ctx context.Context, c *cli.Command, err error) {},
		Commands: []*cli.Command{
			a.cmdPreinstall(),
			a.cmdPostinstall(),
		},
	}
}

// setup detects the platform once, loads the config and builds the logger.
func (a *app) setup(ctx context.Context) error {
	info, err := a.detector.Detect(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed detecting platform")
	}
	a.detector = platform.StaticDetector{Info: info}

	warnings := &deferredLogger{}
	cfg := config.Default()
	if a.configPath != "" {
		cfg, err = config.NewParser(a.detector, warnings).ParseFile(ctx, a.configPath)
		if err != nil {
			return goerr.Wrap(err, "failed loading config", goerr.V("path", a.configPath))
		}
	}
	cfg.Apply(a.overrides)
	if err := cfg.Validate(); err != nil {
		return goerr.Wrap(err, "invalid config")
	}

	base, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Stdout: zapcore.AddSync(a.stdout),
		Stderr: zapcore.AddSync(a.stderr),
	})
	if err != nil {
		return goerr.Wrap(err, "failed building logger")
	}

	a.cfg = cfg
	a.base = base
	warnings.replay(logger.NewChannel(base, "config"))
	return nil
}

func (a *app) cmdPreinstall() *cli.Command {
	return &cli.Command{
		Name:  "preinstall",
		Usage: "Fetch and unpack the distribution for this platform",
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.NewChannel(a.base, "preinstall")
			svc := service.NewPreinstallService(
				a.cfg,
				artifact.NewClient(a.cfg.Timeout),
				a.detector,
				service.RealClock{},
				log,
			)

			report, err := svc.Execute(ctx)
			if err != nil {
				var mismatch *service.ChecksumMismatchError
				if errors.As(err, &mismatch) {
					log.Error(mismatch.Error())
				} else {
					log.Error("preinstall failed", "stage", string(report.Failed), "error", err.Error())
				}
				log.Stack(err)
				return err
			}
			return nil
		},
	}
}

func (a *app) cmdPostinstall() *cli.Command {
	return &cli.Command{
		Name:  "postinstall",
		Usage: "Verify the installation by running the installed tool",
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.NewChannel(a.base, "postinstall")
			svc := service.NewPostinstallService(a.cfg.VerifyCommand, a.runner, log)

			if _, err := svc.Execute(ctx); err != nil {
				var failed *service.VerificationFailedError
				if !errors.As(err, &failed) {
					log.Error("postinstall failed", "error", err.Error())
					log.Stack(err)
				}
				return err
			}
			return nil
		},
	}
}

// exitCode maps an error to a process exit code. Errors carrying a positive
// code keep it; every other failure is 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) && coder.ExitCode() > 0 {
		return coder.ExitCode()
	}
	return 1
}

// deferredLogger holds config warnings until the logger they belong on
// exists.
type deferredLogger struct {
	records []deferredRecord
}

type deferredRecord struct {
	level zapcore.Level
	msg   string
	kv    []interface{}
}

func (d *deferredLogger) Debug(msg string, kv ...interface{}) {
	d.records = append(d.records, deferredRecord{zapcore.DebugLevel, msg, kv})
}

func (d *deferredLogger) Info(msg string, kv ...interface{}) {
	d.records = append(d.records, deferredRecord{zapcore.InfoLevel, msg, kv})
}

func (d *deferredLogger) Warn(msg string, kv ...interface{}) {
	d.records = append(d.records, deferredRecord{zapcore.WarnLevel, msg, kv})
}

func (d *deferredLogger) Error(msg string, kv ...interface{}) {
	d.records = append(d.records, deferredRecord{zapcore.ErrorLevel, msg, kv})
}

func (d *deferredLogger) replay(log *logger.Channel) {
	for _, r := range d.records {
		switch r.level {
		case zapcore.DebugLevel:
			log.Debug(r.msg, r.kv...)
		case zapcore.InfoLevel:
			log.Info(r.msg, r.kv...)
		case zapcore.WarnLevel:
			log.Warn(r.msg, r.kv...)
		default:
			log.Error(r.msg, r.kv...)
		}
	}
	d.records = nil
}
