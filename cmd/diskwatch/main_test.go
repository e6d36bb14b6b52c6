package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tis24dev/diskwatch/internal/checks"
	"github.com/tis24dev/diskwatch/internal/cli"
	"github.com/tis24dev/diskwatch/internal/config"
	"github.com/tis24dev/diskwatch/internal/logging"
	"github.com/tis24dev/diskwatch/internal/orchestrator"
	"github.com/tis24dev/diskwatch/internal/types"
)

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diskwatch.env")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeEnv(t, "SERVER_NAME=nas\nUSAGE_WARN=70\nUSAGE_CRIT=80\n")
	cfg, err := loadConfig(&cli.Args{ConfigPath: path, ConfigExplicit: true}, logging.NewBootstrapLogger())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ServerName != "nas" || cfg.UsageWarn != 70 || cfg.UsageCrit != 80 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.env")

	if _, err := loadConfig(&cli.Args{ConfigPath: missing, ConfigExplicit: true}, logging.NewBootstrapLogger()); !errors.Is(err, config.ErrConfigNotFound) {
		t.Fatalf("explicit missing config: err = %v", err)
	}

	t.Setenv("SERVER_NAME", "from-env")
	cfg, err := loadConfig(&cli.Args{ConfigPath: missing}, logging.NewBootstrapLogger())
	if err != nil {
		t.Fatalf("default missing config should fall back: %v", err)
	}
	if cfg.ServerName != "from-env" {
		t.Errorf("ServerName = %q", cfg.ServerName)
	}
}

func TestLoadConfigRejectsInvertedThresholds(t *testing.T) {
	path := writeEnv(t, "SERVER_NAME=nas\nHDD_TEMP_WARN=60\nHDD_TEMP_CRIT=50\n")
	_, err := loadConfig(&cli.Args{ConfigPath: path, ConfigExplicit: true}, logging.NewBootstrapLogger())
	if err == nil || !strings.Contains(err.Error(), "HDD_TEMP_WARN") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	orig := stdoutIsTerminal
	stdoutIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdoutIsTerminal = orig })

	cfg := &config.Config{DebugLevel: types.LogLevelWarning, UseColor: true}
	if got := newLogger(&cli.Args{LogLevel: types.LogLevelNone}, cfg); got.GetLevel() != types.LogLevelWarning || got.UsesColor() {
		t.Errorf("config level: level=%v color=%v", got.GetLevel(), got.UsesColor())
	}
	if got := newLogger(&cli.Args{LogLevel: types.LogLevelDebug}, cfg); got.GetLevel() != types.LogLevelDebug {
		t.Errorf("flag level = %v", got.GetLevel())
	}
}

func TestExitCodeFor(t *testing.T) {
	lockErr := &orchestrator.RunError{Phase: "lock", Err: checks.ErrLockHeld, Code: types.ExitLockHeld}
	if got := exitCodeFor(&orchestrator.RunResult{}, lockErr); got != types.ExitLockHeld {
		t.Errorf("lock error = %v", got)
	}
	if got := exitCodeFor(&orchestrator.RunResult{ExitCode: types.ExitCriticalHealth}, errors.New("output")); got != types.ExitCriticalHealth {
		t.Errorf("result code = %v", got)
	}
	if got := exitCodeFor(nil, errors.New("boom")); got != types.ExitGenericError {
		t.Errorf("plain error = %v", got)
	}
}

func TestTelegramWarning(t *testing.T) {
	configured := &config.Config{TelegramEnabled: true, TelegramBotToken: "123:abc", TelegramChatID: "42"}
	tests := []struct {
		name string
		cfg  *config.Config
		opts orchestrator.Options
		want string
	}{
		{"configured", configured, orchestrator.Options{}, ""},
		{"disabled", &config.Config{}, orchestrator.Options{}, "TELEGRAM_ENABLED=false"},
		{"missing chat id", &config.Config{TelegramEnabled: true, TelegramBotToken: "123:abc"}, orchestrator.Options{}, "TELEGRAM_CHAT_ID missing"},
		{"read-only run", &config.Config{TelegramEnabled: true}, orchestrator.Options{JSON: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := telegramWarning(tt.cfg, tt.opts)
			if tt.want == "" && got != "" {
				t.Fatalf("telegramWarning = %q, want none", got)
			}
			if !strings.Contains(got, tt.want) {
				t.Fatalf("telegramWarning = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogFinishReportsCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(types.LogLevelInfo, false)
	logger.SetOutput(&buf)

	logFinish(logger)
	if buf.Len() != 0 {
		t.Fatalf("clean run logged %q", buf.String())
	}

	logger.Warning("smartctl slow")
	logger.Error("statfs failed")
	logFinish(logger)
	if !strings.Contains(buf.String(), "1 warning(s) and 1 error(s)") {
		t.Errorf("output = %q", buf.String())
	}
}
