package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tis24dev/diskwatch/internal/config"
	"github.com/tis24dev/diskwatch/internal/types"
	"github.com/tis24dev/diskwatch/internal/version"
)

const (
	configSourceDefault = "default path"
	configSourceFlag    = "specified via --config/-c flag"
)

// Args holds the parsed command-line arguments
type Args struct {
	ConfigPath       string
	ConfigPathSource string
	// ConfigExplicit is true when --config/-c was given.
	ConfigExplicit bool
	// LogLevel is LogLevelNone when the flag was not given; the config decides.
	LogLevel    types.LogLevel
	DryRun      bool
	Test        bool
	Force       bool
	JSON        bool
	View        bool
	ShowVersion bool
	ShowHelp    bool
}

// Parse parses os.Args and exits on a flag error.
func Parse() *Args {
	args, err := ParseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(types.ExitConfigError.Int())
	}
	return args
}

// ParseArgs parses argv (without the program name). Usage is printed to w on
// error or -h.
func ParseArgs(argv []string, w io.Writer) (*Args, error) {
	args := &Args{}
	fs, configFlag, logLevelStr := newFlagSet(args, w)

	if err := fs.Parse(argv); err != nil {
		if err == flag.ErrHelp {
			args.ShowHelp = true
			return args, nil
		}
		return nil, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
		fmt.Fprintln(w, err)
		return nil, err
	}
	if args.JSON && args.View {
		err := fmt.Errorf("--json and --view cannot be combined")
		fmt.Fprintln(w, err)
		return nil, err
	}

	args.ConfigPath = configFlag.value
	args.ConfigExplicit = configFlag.set
	if configFlag.set {
		args.ConfigPathSource = configSourceFlag
	} else {
		args.ConfigPathSource = configSourceDefault
	}

	if *logLevelStr != "" {
		args.LogLevel = parseLogLevel(*logLevelStr)
	} else {
		args.LogLevel = types.LogLevelNone
	}
	return args, nil
}

func newFlagSet(args *Args, w io.Writer) (*flag.FlagSet, *stringFlag, *string) {
	fs := flag.NewFlagSet("diskwatch", flag.ContinueOnError)
	fs.SetOutput(w)

	configFlag := newStringFlag(config.DefaultConfigPath)
	fs.Var(configFlag, "config", "Path to configuration file")
	fs.Var(configFlag, "c", "Path to configuration file (shorthand)")

	logLevelStr := new(string)
	fs.StringVar(logLevelStr, "log-level", "", "Log level (debug|info|warning|error|critical)")
	fs.StringVar(logLevelStr, "l", "", "Log level (shorthand)")

	fs.BoolVar(&args.Test, "test", false,
		"Send the report even when nothing changed; the stored state is kept unless --f is also given")
	fs.BoolVar(&args.Force, "f", false,
		"Force: send the report and store it as the new state")
	fs.BoolVar(&args.Force, "force", false, "Alias for --f")

	fs.BoolVar(&args.DryRun, "dry-run", false, "Evaluate and print the report, never send or store")
	fs.BoolVar(&args.DryRun, "n", false, "Dry run (shorthand)")

	fs.BoolVar(&args.JSON, "json", false, "Print the report as JSON to stdout, never send or store")
	fs.BoolVar(&args.View, "view", false, "Show the report in an interactive terminal view, never send or store")

	fs.BoolVar(&args.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&args.ShowVersion, "v", false, "Show version information (shorthand)")
	fs.BoolVar(&args.ShowHelp, "help", false, "Show help message")
	fs.BoolVar(&args.ShowHelp, "h", false, "Show help message (shorthand)")

	fs.Usage = func() { printHelp(w, fs) }
	return fs, configFlag, logLevelStr
}

func parseLogLevel(s string) types.LogLevel {
	switch strings.ToLower(s) {
	case "debug", "5":
		return types.LogLevelDebug
	case "info", "4":
		return types.LogLevelInfo
	case "warning", "3":
		return types.LogLevelWarning
	case "error", "2":
		return types.LogLevelError
	case "critical", "1":
		return types.LogLevelCritical
	case "none", "0":
		return types.LogLevelNone
	default:
		return types.LogLevelInfo
	}
}

// PrintHelp writes the usage text.
func PrintHelp(w io.Writer) {
	fs, _, _ := newFlagSet(&Args{}, w)
	printHelp(w, fs)
}

// PrintVersion writes the --version output.
func PrintVersion(w io.Writer) {
	fmt.Fprint(w, version.Details())
}

func printHelp(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [options]\n\n", fs.Name())
	fmt.Fprintln(w, "Checks SMART health, filesystem usage and software RAID, and sends a")
	fmt.Fprintln(w, "Telegram alert when the set of problems changes.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Options:")
	fs.PrintDefaults()
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Exit codes: 0 ok or warnings, 2 configuration error, 3 critical findings,")
	fmt.Fprintln(w, "4 another run holds the lock.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintf(w, "  %s -c /etc/diskwatch/diskwatch.env\n", fs.Name())
	fmt.Fprintf(w, "  %s --test\n", fs.Name())
	fmt.Fprintf(w, "  %s --dry-run --log-level debug\n", fs.Name())
}

type stringFlag struct {
	value string
	set   bool
}

func newStringFlag(defaultValue string) *stringFlag {
	return &stringFlag{value: defaultValue}
}

func (s *stringFlag) String() string {
	if s == nil {
		return ""
	}
	return s.value
}

func (s *stringFlag) Set(val string) error {
	s.value = val
	s.set = true
	return nil
}
