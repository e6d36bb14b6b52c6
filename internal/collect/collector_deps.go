package collect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tis24dev/diskwatch/internal/safefs"
)

// CommandError reports a command that ran but exited non-zero. Output is
// still returned alongside it because smartctl encodes findings in its
// exit status.
type CommandError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

var (
	execLookPath = exec.LookPath

	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			if ctx.Err() != nil {
				return out, fmt.Errorf("%s: %w", name, ctx.Err())
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return out, &CommandError{
					Name:   name,
					Code:   exitErr.ExitCode(),
					Stderr: strings.TrimSpace(stderr.String()),
				}
			}
		}
		return out, err
	}
)

// Deps allows injecting the external world for the Collector.
type Deps struct {
	LookPath   func(string) (string, error)
	RunCommand func(context.Context, string, ...string) ([]byte, error)
	ReadFile   func(context.Context, string) ([]byte, error)
	// ReadDirNames lists the entry names of a directory.
	ReadDirNames func(context.Context, string) ([]string, error)
	Statfs       func(context.Context, string) (safefs.Usage, error)
}

func defaultDeps(timeout time.Duration) Deps {
	return Deps{
		LookPath: func(name string) (string, error) {
			return execLookPath(name)
		},
		RunCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return runCommand(ctx, name, args...)
		},
		ReadFile: func(ctx context.Context, path string) ([]byte, error) {
			return safefs.ReadFile(ctx, path, timeout)
		},
		ReadDirNames: func(ctx context.Context, path string) ([]string, error) {
			entries, err := safefs.ReadDir(ctx, path, timeout)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			return names, nil
		},
		Statfs: func(ctx context.Context, path string) (safefs.Usage, error) {
			return safefs.Statfs(ctx, path, timeout)
		},
	}
}

// fill replaces nil fields with the real implementations.
func (d Deps) fill(timeout time.Duration) Deps {
	def := defaultDeps(timeout)
	if d.LookPath == nil {
		d.LookPath = def.LookPath
	}
	if d.RunCommand == nil {
		d.RunCommand = def.RunCommand
	}
	if d.ReadFile == nil {
		d.ReadFile = def.ReadFile
	}
	if d.ReadDirNames == nil {
		d.ReadDirNames = def.ReadDirNames
	}
	if d.Statfs == nil {
		d.Statfs = def.Statfs
	}
	return d
}
