package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"golang.org/x/term"

	"github.com/tis24dev/diskwatch/internal/cli"
	"github.com/tis24dev/diskwatch/internal/config"
	"github.com/tis24dev/diskwatch/internal/logging"
	"github.com/tis24dev/diskwatch/internal/orchestrator"
	"github.com/tis24dev/diskwatch/internal/types"
	"github.com/tis24dev/diskwatch/internal/version"
)

var (
	stdoutIsTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
	stdinIsTerminal  = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	bootstrap := logging.NewBootstrapLogger()

	defer func() {
		if r := recover(); r != nil {
			bootstrap.Error("PANIC: %v", r)
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			code = types.ExitPanicError.Int()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := cli.Parse()
	if args.ShowVersion {
		cli.PrintVersion(os.Stdout)
		return types.ExitSuccess.Int()
	}
	if args.ShowHelp {
		cli.PrintHelp(os.Stdout)
		return types.ExitSuccess.Int()
	}

	cfg, err := loadConfig(args, bootstrap)
	if err != nil {
		bootstrap.Error("ERROR: %v", err)
		return types.ExitConfigError.Int()
	}

	if args.View && !(stdoutIsTerminal() && stdinIsTerminal()) {
		bootstrap.Error("ERROR: --view needs an interactive terminal")
		return types.ExitEnvironmentError.Int()
	}

	logger := newLogger(args, cfg)
	logging.SetDefaultLogger(logger)
	bootstrap.SetLevel(logger.GetLevel())
	bootstrap.Flush(logger)
	defer logger.CloseLogFile()

	if cfg.LogFile != "" {
		if err := logger.OpenLogFile(cfg.LogFile); err != nil {
			logger.Warning("Log file disabled: %v", err)
		}
	}

	logger.Debug("diskwatch %s, config %s (%s)", version.String(), args.ConfigPath, args.ConfigPathSource)
	for _, w := range cfg.Warnings {
		logger.Warning("Config: %s", w)
	}

	opts := orchestrator.Options{
		Test:   args.Test,
		Force:  args.Force,
		DryRun: args.DryRun || cfg.DryRun,
		JSON:   args.JSON,
		View:   args.View,
	}
	if opts.DryRun && !args.DryRun {
		logger.Info("DRY_RUN is set in the configuration")
	}
	if msg := telegramWarning(cfg, opts); msg != "" {
		logger.Warning("%s", msg)
	}

	result, err := orchestrator.New(cfg, logger).Run(ctx, opts)
	var exitCode types.ExitCode
	if err != nil {
		logger.Error("%v", err)
		exitCode = exitCodeFor(result, err)
	} else {
		exitCode = result.ExitCode
	}
	logFinish(logger)
	return exitCode.Int()
}

// telegramWarning explains why a sending run will not reach the chat.
func telegramWarning(cfg *config.Config, opts orchestrator.Options) string {
	switch {
	case opts.ReadOnly():
		return ""
	case !cfg.TelegramEnabled:
		return "TELEGRAM_ENABLED=false: reports are evaluated but not sent"
	case !cfg.TelegramConfigured():
		return "TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID missing: reports are evaluated but not sent"
	}
	return ""
}

func logFinish(logger *logging.Logger) {
	warnings, errs := logger.Counts()
	if warnings == 0 && errs == 0 {
		logger.Debug("Run finished cleanly")
		return
	}
	logger.Info("Run finished with %d warning(s) and %d error(s)", warnings, errs)
}

// loadConfig reads the configuration named by args. A missing default file
// falls back to environment variables; a missing explicit file is an error.
func loadConfig(args *cli.Args, bootstrap *logging.BootstrapLogger) (*config.Config, error) {
	cfg, err := config.LoadConfig(args.ConfigPath)
	if errors.Is(err, config.ErrConfigNotFound) && !args.ConfigExplicit {
		bootstrap.Warning("WARNING: %s not found, using defaults and environment variables", args.ConfigPath)
		cfg, err = config.FromEnvironment()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", args.ConfigPath, err)
	}
	bootstrap.Debug("Configuration loaded from %s", args.ConfigPath)
	return cfg, nil
}

func newLogger(args *cli.Args, cfg *config.Config) *logging.Logger {
	level := cfg.DebugLevel
	if args.LogLevel != types.LogLevelNone {
		level = args.LogLevel
	}
	useColor := cfg.UseColor && stdoutIsTerminal() && !args.JSON

	logger := logging.New(level, useColor)
	// --json owns stdout.
	if args.JSON {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func exitCodeFor(result *orchestrator.RunResult, err error) types.ExitCode {
	var runErr *orchestrator.RunError
	if errors.As(err, &runErr) && runErr.Code != types.ExitSuccess {
		return runErr.Code
	}
	if result != nil && result.ExitCode != types.ExitSuccess {
		return result.ExitCode
	}
	return types.ExitGenericError
}
