// Package types defines shared application data types.
package types

// ExitCode represents the application's exit codes.
type ExitCode int

const (
	// ExitSuccess - Run completed and nothing critical was found.
	ExitSuccess ExitCode = 0

	// ExitGenericError - Unspecified generic error.
	ExitGenericError ExitCode = 1

	// ExitConfigError - Configuration error.
	ExitConfigError ExitCode = 2

	// ExitCriticalHealth - Run completed and at least one CRITICAL finding was reported.
	ExitCriticalHealth ExitCode = 3

	// ExitLockHeld - Another run holds the lock.
	ExitLockHeld ExitCode = 4

	// ExitEnvironmentError - Missing terminal, unusable state directory, etc.
	ExitEnvironmentError ExitCode = 5

	// ExitPanicError - Unhandled panic caught.
	ExitPanicError ExitCode = 13
)

// String returns a human-readable description of the exit code.
func (e ExitCode) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitGenericError:
		return "generic error"
	case ExitConfigError:
		return "configuration error"
	case ExitCriticalHealth:
		return "critical health finding"
	case ExitLockHeld:
		return "another run in progress"
	case ExitEnvironmentError:
		return "environment error"
	case ExitPanicError:
		return "panic error"
	default:
		return "unknown error"
	}
}

// Int returns the exit code as an int.
func (e ExitCode) Int() int {
	return int(e)
}
