package checks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tis24dev/diskwatch/internal/logging"
)

// ErrLockHeld is returned when another run owns a fresh lock file.
var ErrLockHeld = errors.New("another diskwatch run holds the lock")

var (
	osStat      = os.Stat
	osRemove    = os.Remove
	osOpenFile  = os.OpenFile
	osMkdirAll  = os.MkdirAll
	osWriteFile = os.WriteFile
	osHostname  = os.Hostname
	osGetpid    = os.Getpid
	now         = time.Now
	syncFile    = func(f *os.File) error { return f.Sync() }
)

// Checker performs the checks that must pass before a run touches state.
type Checker struct {
	logger *logging.Logger
	config *CheckerConfig
	locked bool
}

// CheckerConfig holds configuration for pre-run checks
type CheckerConfig struct {
	StateDir     string
	LockFilePath string
	MaxLockAge   time.Duration
}

// Validate checks if the checker configuration is valid
func (c *CheckerConfig) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state directory cannot be empty")
	}
	if c.LockFilePath == "" {
		c.LockFilePath = filepath.Join(c.StateDir, ".diskwatch.lock")
	}
	if c.MaxLockAge <= 0 {
		return fmt.Errorf("max lock age must be positive")
	}
	return nil
}

// CheckResult holds the result of a validation check
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
	Error   error
	Code    string
}

// LockInfo is the owner recorded in a lock file.
type LockInfo struct {
	PID  int
	Host string
	Time time.Time
}

// NewChecker creates a new pre-run checker
func NewChecker(logger *logging.Logger, config *CheckerConfig) *Checker {
	return &Checker{
		logger: logger,
		config: config,
	}
}

// RunAllChecks prepares the state directory, verifies it is writable and
// takes the run lock, in that order.
func (c *Checker) RunAllChecks(ctx context.Context) ([]CheckResult, error) {
	c.logger.Debug("Running pre-run checks")
	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checker configuration: %w", err)
	}

	var results []CheckResult

	dirResult := c.CheckDirectories()
	results = append(results, dirResult)
	if !dirResult.Passed {
		return results, fmt.Errorf("directory check failed: %w", dirResult.Error)
	}

	permResult := c.CheckPermissions()
	results = append(results, permResult)
	if !permResult.Passed {
		return results, fmt.Errorf("permissions check failed: %w", permResult.Error)
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}

	lockResult := c.CheckLockFile()
	results = append(results, lockResult)
	if !lockResult.Passed {
		return results, fmt.Errorf("lock file check failed: %w", lockResult.Error)
	}

	c.logger.Debug("All pre-run checks passed")
	return results, nil
}

// CheckDirectories makes sure the state directory and the lock directory exist.
func (c *Checker) CheckDirectories() CheckResult {
	result := CheckResult{Name: "Directories"}

	dirs := []string{filepath.Clean(c.config.StateDir)}
	if lockDir := filepath.Dir(c.config.LockFilePath); filepath.Clean(lockDir) != dirs[0] {
		dirs = append(dirs, filepath.Clean(lockDir))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." || dir == "/" {
			continue
		}
		info, err := osStat(dir)
		if err == nil {
			if !info.IsDir() {
				result.Code = "NOT_DIRECTORY"
				result.Error = fmt.Errorf("required path is not a directory: %s", dir)
				result.Message = result.Error.Error()
				c.logger.Error("%s", result.Message)
				return result
			}
			continue
		}
		if !os.IsNotExist(err) {
			result.Code = "STAT_FAILED"
			result.Error = fmt.Errorf("failed to stat directory %s: %w", dir, err)
			result.Message = result.Error.Error()
			c.logger.Error("%s", result.Message)
			return result
		}

		if err := osMkdirAll(dir, 0o750); err != nil {
			result.Code = "CREATE_FAILED"
			result.Error = fmt.Errorf("failed to create directory %s: %w", dir, err)
			result.Message = result.Error.Error()
			c.logger.Error("%s", result.Message)
			return result
		}
		c.logger.Info("Created missing directory: %s", dir)
	}

	result.Passed = true
	result.Message = "State directory exists"
	return result
}

// CheckPermissions verifies the state directory accepts writes.
func (c *Checker) CheckPermissions() CheckResult {
	result := CheckResult{Name: "Permissions"}

	testFile := filepath.Join(c.config.StateDir, ".diskwatch-permission-test")
	if err := osWriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Code = "NOT_WRITABLE"
		result.Error = fmt.Errorf("state directory not writable - path: %s: %w", c.config.StateDir, err)
		result.Message = result.Error.Error()
		c.logger.Error("%s", result.Message)
		return result
	}
	if err := osRemove(testFile); err != nil {
		c.logger.Debug("Failed to remove permission probe %s: %v", testFile, err)
	}

	result.Passed = true
	result.Message = fmt.Sprintf("%s is writable", c.config.StateDir)
	return result
}

// CheckLockFile creates the lock file exclusively. A lock older than
// MaxLockAge is considered abandoned and replaced.
func (c *Checker) CheckLockFile() CheckResult {
	result := CheckResult{Name: "Lock File"}
	lockPath := c.config.LockFilePath
	c.logger.Debug("Lock file path: %s", lockPath)

	if info, err := osStat(lockPath); err == nil {
		age := now().Sub(info.ModTime())
		if age > c.config.MaxLockAge {
			c.logger.Warning("Removing stale lock file %s (age: %s)", lockPath, age.Round(time.Second))
			if err := osRemove(lockPath); err != nil && !os.IsNotExist(err) {
				result.Code = "STALE_REMOVE_FAILED"
				result.Error = fmt.Errorf("failed to remove stale lock: %w", err)
				result.Message = result.Error.Error()
				return result
			}
		} else {
			result.Code = "LOCK_HELD"
			result.Error = fmt.Errorf("%w: %s", ErrLockHeld, describeOwner(lockPath, age))
			result.Message = result.Error.Error()
			c.logger.Error("%s", result.Message)
			return result
		}
	}

	f, err := osOpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		if os.IsExist(err) {
			result.Code = "LOCK_HELD"
			result.Error = fmt.Errorf("%w: lock acquired concurrently at %s", ErrLockHeld, lockPath)
			result.Message = result.Error.Error()
			c.logger.Error("%s", result.Message)
			return result
		}
		result.Code = "CREATE_FAILED"
		result.Error = fmt.Errorf("failed to create lock file: %w", err)
		result.Message = result.Error.Error()
		return result
	}
	defer f.Close()

	hostname, _ := osHostname()
	content := fmt.Sprintf("pid=%d\nhost=%s\ntime=%s\n", osGetpid(), hostname, now().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = osRemove(lockPath)
		result.Code = "WRITE_FAILED"
		result.Error = fmt.Errorf("failed to write lock file: %w", err)
		result.Message = result.Error.Error()
		return result
	}
	if err := syncFile(f); err != nil {
		c.logger.Warning("Failed to sync lock file %s: %v", lockPath, err)
	}

	c.locked = true
	result.Passed = true
	result.Message = "Lock file acquired"
	c.logger.Debug("%s", result.Message)
	return result
}

// ReleaseLock removes the lock file if this checker created it.
func (c *Checker) ReleaseLock() error {
	if !c.locked {
		return nil
	}
	if err := osRemove(c.config.LockFilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	c.locked = false
	c.logger.Debug("Lock file released: %s", c.config.LockFilePath)
	return nil
}

// ReadLockInfo parses the key=value lines written by CheckLockFile.
func ReadLockInfo(path string) (LockInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return LockInfo{}, err
	}
	defer f.Close()

	var info LockInfo
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(value)
		case "host":
			info.Host = value
		case "time":
			info.Time, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info, scanner.Err()
}

func describeOwner(lockPath string, age time.Duration) string {
	info, err := ReadLockInfo(lockPath)
	if err != nil || info.PID == 0 {
		return fmt.Sprintf("%s (age %s)", lockPath, age.Round(time.Second))
	}
	return fmt.Sprintf("%s held by pid %d on %s (age %s)", lockPath, info.PID, info.Host, age.Round(time.Second))
}

// GetDefaultCheckerConfig returns a checker configuration for a state directory.
func GetDefaultCheckerConfig(stateDir, lockPath string, maxAge time.Duration) *CheckerConfig {
	if lockPath == "" {
		lockPath = filepath.Join(stateDir, ".diskwatch.lock")
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &CheckerConfig{
		StateDir:     stateDir,
		LockFilePath: lockPath,
		MaxLockAge:   maxAge,
	}
}
