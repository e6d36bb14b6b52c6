package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tis24dev/diskwatch/internal/config"
	"github.com/tis24dev/diskwatch/internal/types"
)

func TestStringFlag(t *testing.T) {
	sf := newStringFlag("default")
	if sf.String() != "default" || sf.set {
		t.Fatalf("new flag = %q set=%v", sf.String(), sf.set)
	}
	if err := sf.Set("first"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := sf.Set("second"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if sf.String() != "second" || !sf.set {
		t.Fatalf("flag = %q set=%v", sf.String(), sf.set)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected types.LogLevel
	}{
		{"debug", types.LogLevelDebug},
		{"DEBUG", types.LogLevelDebug},
		{"5", types.LogLevelDebug},
		{"info", types.LogLevelInfo},
		{"warning", types.LogLevelWarning},
		{"3", types.LogLevelWarning},
		{"error", types.LogLevelError},
		{"critical", types.LogLevelCritical},
		{"none", types.LogLevelNone},
		{"0", types.LogLevelNone},
		{"invalid", types.LogLevelInfo},
		{"", types.LogLevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.expected {
			t.Errorf("parseLogLevel(%q) = %v; want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseDefaults(t *testing.T) {
	args, err := ParseArgs(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if args.ConfigPath != config.DefaultConfigPath || args.ConfigExplicit || args.ConfigPathSource != configSourceDefault {
		t.Errorf("config = %q explicit=%v source=%q", args.ConfigPath, args.ConfigExplicit, args.ConfigPathSource)
	}
	if args.LogLevel != types.LogLevelNone {
		t.Errorf("LogLevel = %v, want none", args.LogLevel)
	}
	if args.Test || args.Force || args.DryRun || args.JSON || args.View {
		t.Errorf("unexpected flags set: %+v", args)
	}
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name  string
		argv  []string
		check func(*Args) bool
	}{
		{"config long", []string{"--config", "/tmp/x.env"}, func(a *Args) bool {
			return a.ConfigPath == "/tmp/x.env" && a.ConfigExplicit && a.ConfigPathSource == configSourceFlag
		}},
		{"config short", []string{"-c", "/tmp/y.env"}, func(a *Args) bool { return a.ConfigPath == "/tmp/y.env" && a.ConfigExplicit }},
		{"test", []string{"--test"}, func(a *Args) bool { return a.Test && !a.Force }},
		{"force f", []string{"--f"}, func(a *Args) bool { return a.Force }},
		{"force long", []string{"--force"}, func(a *Args) bool { return a.Force }},
		{"test and force", []string{"--test", "-f"}, func(a *Args) bool { return a.Test && a.Force }},
		{"dry run short", []string{"-n"}, func(a *Args) bool { return a.DryRun }},
		{"json", []string{"--json"}, func(a *Args) bool { return a.JSON }},
		{"view", []string{"--view"}, func(a *Args) bool { return a.View }},
		{"log level", []string{"-l", "debug"}, func(a *Args) bool { return a.LogLevel == types.LogLevelDebug }},
		{"version", []string{"-v"}, func(a *Args) bool { return a.ShowVersion }},
		{"help", []string{"--help"}, func(a *Args) bool { return a.ShowHelp }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseArgs(tt.argv, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("ParseArgs(%v) error: %v", tt.argv, err)
			}
			if !tt.check(args) {
				t.Errorf("ParseArgs(%v) = %+v", tt.argv, args)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, argv := range [][]string{
		{"--unknown"},
		{"extra-positional"},
		{"--json", "--view"},
	} {
		var buf bytes.Buffer
		if _, err := ParseArgs(argv, &buf); err == nil {
			t.Errorf("ParseArgs(%v) succeeded, want error", argv)
		}
		if buf.Len() == 0 {
			t.Errorf("ParseArgs(%v) wrote nothing to the error writer", argv)
		}
	}
}

func TestPrintHelpAndVersion(t *testing.T) {
	var help bytes.Buffer
	PrintHelp(&help)
	for _, want := range []string{"Usage: diskwatch", "-test", "-force", "-view", "Exit codes"} {
		if !strings.Contains(help.String(), want) {
			t.Errorf("help missing %q:\n%s", want, help.String())
		}
	}

	var ver bytes.Buffer
	PrintVersion(&ver)
	if !strings.HasPrefix(ver.String(), "diskwatch ") {
		t.Errorf("version output = %q", ver.String())
	}
}
