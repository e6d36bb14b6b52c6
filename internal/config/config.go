package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/types"
	"github.com/tis24dev/diskwatch/pkg/utils"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "/etc/diskwatch/diskwatch.env"

// DefaultExcludeFSTypes keeps network mounts out of usage checks. Setting
// EXCLUDE_FS_TYPES, even to an empty value, replaces it.
const DefaultExcludeFSTypes = "nfs nfs4 cifs smb3"

// ErrConfigNotFound is returned by LoadConfig when the file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

var (
	multiValueKeys = map[string]bool{
		"AGE_RECIPIENT":  true,
		"DEVICES":        true,
		"EXCLUDE_MOUNTS": true,
	}

	blockValueKeys = map[string]bool{
		"DEVICES":        true,
		"EXCLUDE_MOUNTS": true,
	}

	// envKeys can be overridden by environment variables.
	envKeys = []string{
		"DEBUG_LEVEL", "USE_COLOR", "LOG_FILE", "SERVER_NAME", "DRY_RUN",
		"DEVICES", "SMART_DEVICE_TYPES",
		"HDD_TEMP_WARN", "HDD_TEMP_CRIT", "SSD_TEMP_WARN", "SSD_TEMP_CRIT",
		"USAGE_WARN", "USAGE_CRIT",
		"EXCLUDE_FS_TYPES", "EXCLUDE_MOUNTS",
		"RAID_ENABLED", "MDSTAT_PATH", "MOUNTS_PATH", "SYS_BLOCK_PATH",
		"COMMAND_TIMEOUT",
		"STATE_DIR", "STATE_FILE", "LOCK_PATH", "LOCK_MAX_AGE_MINUTES",
		"TELEGRAM_ENABLED", "TELEGRAM_BOT_TOKEN", "BOT_TOKEN", "TELEGRAM_CHAT_ID", "CHAT_ID",
		"TELEGRAM_API_URL", "TELEGRAM_TIMEOUT", "TELEGRAM_PARSE_MODE",
		"METRICS_ENABLED", "METRICS_PATH",
		"REPORT_ARCHIVE_ENABLED", "REPORT_ARCHIVE_DIR", "REPORT_ARCHIVE_MAX",
		"AGE_RECIPIENT", "AGE_RECIPIENT_FILE",
	}

	stdoutIsTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
	osHostname       = os.Hostname
)

// Config holds the whole runtime configuration of diskwatch.
type Config struct {
	ConfigPath string

	// General
	DebugLevel types.LogLevel
	UseColor   bool
	LogFile    string
	ServerName string `validate:"required"`
	DryRun     bool

	// Devices
	Devices     []string
	DeviceTypes map[string]string

	// Thresholds
	HDDTempWarn int `validate:"required|min:1|max:150"`
	HDDTempCrit int `validate:"required|min:1|max:150"`
	SSDTempWarn int `validate:"required|min:1|max:150"`
	SSDTempCrit int `validate:"required|min:1|max:150"`
	UsageWarn   int `validate:"required|min:1|max:100"`
	UsageCrit   int `validate:"required|min:1|max:100"`

	// Filesystems and RAID
	ExcludeFSTypes []string
	ExcludeMounts  []string
	RaidEnabled    bool
	MdstatPath     string `validate:"required|unixPath"`
	MountsPath     string `validate:"required|unixPath"`
	SysBlockPath   string `validate:"required|unixPath"`

	// CommandTimeout is in seconds.
	CommandTimeout int `validate:"required|min:1|max:3600"`

	// State and locking
	StateDir          string `validate:"required|unixPath"`
	StateFile         string `validate:"required|unixPath"`
	LockPath          string `validate:"required|unixPath"`
	LockMaxAgeMinutes int    `validate:"required|min:1"`

	// Telegram
	TelegramEnabled   bool
	TelegramBotToken  string
	TelegramChatID    string
	TelegramAPIURL    string `validate:"required|fullUrl"`
	TelegramTimeout   int    `validate:"required|min:1|max:300"`
	TelegramParseMode string `validate:"in:Markdown,MarkdownV2,HTML"`

	// Metrics
	MetricsEnabled bool
	MetricsPath    string

	// Report archive
	ReportArchiveEnabled bool
	ReportArchiveDir     string
	ReportArchiveMax     int `validate:"required|min:1"`
	AgeRecipients        []string
	AgeRecipientFile     string

	// Warnings collects non-fatal problems found while parsing.
	Warnings []string

	raw map[string]string
}

// LoadConfig reads an env-style configuration file. Environment variables
// take precedence over file values.
func LoadConfig(configPath string) (*Config, error) {
	if !utils.FileExists(configPath) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}

	rawValues, err := parseEnvFile(configPath)
	if err != nil {
		return nil, err
	}
	return build(configPath, rawValues)
}

// FromEnvironment builds a configuration from defaults and environment
// variables only.
func FromEnvironment() (*Config, error) {
	return build("", make(map[string]string))
}

func build(configPath string, raw map[string]string) (*Config, error) {
	cfg := &Config{
		ConfigPath: configPath,
		raw:        raw,
	}
	cfg.loadEnvOverrides()

	if err := cfg.parse(); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadEnvOverrides() {
	for _, key := range envKeys {
		if envValue := os.Getenv(key); envValue != "" {
			c.raw[key] = envValue
		}
	}
}

func (c *Config) parse() error {
	c.DebugLevel = c.getLogLevel("DEBUG_LEVEL", types.LogLevelInfo)
	if _, ok := c.raw["USE_COLOR"]; ok {
		c.UseColor = c.getBool("USE_COLOR", false)
	} else {
		c.UseColor = stdoutIsTerminal()
	}
	c.LogFile = c.getString("LOG_FILE", "")
	c.DryRun = c.getBool("DRY_RUN", false)

	c.ServerName = c.getString("SERVER_NAME", "")
	if c.ServerName == "" {
		if host, err := osHostname(); err == nil {
			c.ServerName = host
		} else {
			c.ServerName = "unknown"
		}
	}

	c.Devices = utils.SplitList(c.getString("DEVICES", ""))
	c.DeviceTypes = c.parseDeviceTypes("SMART_DEVICE_TYPES")

	def := health.DefaultThresholds()
	c.HDDTempWarn = c.getInt("HDD_TEMP_WARN", def.HDDTempWarn)
	c.HDDTempCrit = c.getInt("HDD_TEMP_CRIT", def.HDDTempCrit)
	c.SSDTempWarn = c.getInt("SSD_TEMP_WARN", def.SSDTempWarn)
	c.SSDTempCrit = c.getInt("SSD_TEMP_CRIT", def.SSDTempCrit)
	c.UsageWarn = c.getInt("USAGE_WARN", def.UsageWarn)
	c.UsageCrit = c.getInt("USAGE_CRIT", def.UsageCrit)

	c.ExcludeFSTypes = utils.SplitList(c.getString("EXCLUDE_FS_TYPES", DefaultExcludeFSTypes))
	c.ExcludeMounts = c.getStringSlice("EXCLUDE_MOUNTS", nil)
	c.RaidEnabled = c.getBool("RAID_ENABLED", true)
	c.MdstatPath = c.getString("MDSTAT_PATH", "/proc/mdstat")
	c.MountsPath = c.getString("MOUNTS_PATH", "/proc/mounts")
	c.SysBlockPath = c.getString("SYS_BLOCK_PATH", "/sys/block")
	c.CommandTimeout = c.ensurePositiveInt("COMMAND_TIMEOUT", 30)

	c.StateDir = filepath.Clean(c.getString("STATE_DIR", "/var/lib/diskwatch"))
	c.StateFile = c.getString("STATE_FILE", filepath.Join(c.StateDir, "state.json"))
	c.LockPath = c.getString("LOCK_PATH", filepath.Join(c.StateDir, ".diskwatch.lock"))
	c.LockMaxAgeMinutes = c.ensurePositiveInt("LOCK_MAX_AGE_MINUTES", 60)

	c.TelegramEnabled = c.getBool("TELEGRAM_ENABLED", true)
	c.TelegramBotToken = c.getStringWithFallback([]string{"TELEGRAM_BOT_TOKEN", "BOT_TOKEN"}, "")
	c.TelegramChatID = c.getStringWithFallback([]string{"TELEGRAM_CHAT_ID", "CHAT_ID"}, "")
	c.TelegramAPIURL = strings.TrimRight(c.getString("TELEGRAM_API_URL", "https://api.telegram.org"), "/")
	c.TelegramTimeout = c.ensurePositiveInt("TELEGRAM_TIMEOUT", 15)
	c.TelegramParseMode = c.getString("TELEGRAM_PARSE_MODE", "Markdown")

	c.MetricsEnabled = c.getBool("METRICS_ENABLED", false)
	c.MetricsPath = c.getString("METRICS_PATH", "/var/lib/prometheus/node-exporter")

	c.ReportArchiveEnabled = c.getBool("REPORT_ARCHIVE_ENABLED", false)
	c.ReportArchiveDir = c.getString("REPORT_ARCHIVE_DIR", filepath.Join(c.StateDir, "reports"))
	c.ReportArchiveMax = c.ensurePositiveInt("REPORT_ARCHIVE_MAX", 30)
	c.AgeRecipients = c.getStringSlice("AGE_RECIPIENT", nil)
	c.AgeRecipientFile = c.getString("AGE_RECIPIENT_FILE", "")

	return nil
}

// Thresholds returns the classification limits.
func (c *Config) Thresholds() health.Thresholds {
	return health.Thresholds{
		HDDTempWarn: c.HDDTempWarn,
		HDDTempCrit: c.HDDTempCrit,
		SSDTempWarn: c.SSDTempWarn,
		SSDTempCrit: c.SSDTempCrit,
		UsageWarn:   c.UsageWarn,
		UsageCrit:   c.UsageCrit,
	}
}

// CommandTimeoutDuration returns COMMAND_TIMEOUT as a duration.
func (c *Config) CommandTimeoutDuration() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}

// TelegramConfigured reports whether the chat channel can actually send.
func (c *Config) TelegramConfigured() bool {
	return c.TelegramEnabled && c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// parseDeviceTypes reads "sdb=sat,sdc=usbjmicron" into a map keyed by bare
// device name. Malformed entries are recorded as warnings.
func (c *Config) parseDeviceTypes(key string) map[string]string {
	result := make(map[string]string)
	for _, entry := range c.getStringSlice(key, nil) {
		for _, item := range strings.Fields(entry) {
			name, hint, ok := strings.Cut(item, "=")
			name = strings.TrimPrefix(strings.TrimSpace(name), "/dev/")
			hint = strings.TrimSpace(hint)
			if !ok || name == "" || hint == "" {
				c.Warnings = append(c.Warnings, fmt.Sprintf("%s: ignoring malformed entry %q", key, item))
				continue
			}
			result[name] = hint
		}
	}
	return result
}

func (c *Config) getString(key, defaultValue string) string {
	if val, ok := c.raw[key]; ok {
		return expandEnvVars(val)
	}
	return defaultValue
}

func (c *Config) getBool(key string, defaultValue bool) bool {
	if val, ok := c.raw[key]; ok {
		return utils.ParseBool(val)
	}
	return defaultValue
}

func (c *Config) getInt(key string, defaultValue int) int {
	if val, ok := c.raw[key]; ok {
		intVal, err := strconv.Atoi(strings.TrimSpace(val))
		if err == nil {
			return intVal
		}
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s: %q is not a number, using %d", key, val, defaultValue))
	}
	return defaultValue
}

func (c *Config) ensurePositiveInt(key string, defaultValue int) int {
	value := c.getInt(key, defaultValue)
	if value <= 0 {
		return defaultValue
	}
	return value
}

func (c *Config) getLogLevel(key string, defaultValue types.LogLevel) types.LogLevel {
	if val, ok := c.raw[key]; ok {
		if intVal, err := strconv.Atoi(val); err == nil {
			return types.LogLevel(intVal)
		}
		switch strings.ToLower(val) {
		case "standard", "info":
			return types.LogLevelInfo
		case "advanced", "debug":
			return types.LogLevelDebug
		case "warning", "warn":
			return types.LogLevelWarning
		case "error":
			return types.LogLevelError
		}
	}
	return defaultValue
}

func (c *Config) getStringSlice(key string, defaultValue []string) []string {
	val, ok := c.raw[key]
	if !ok {
		return defaultValue
	}
	val = strings.TrimSpace(expandEnvVars(val))
	if val == "" {
		return []string{}
	}

	parts := strings.FieldsFunc(val, func(r rune) bool {
		switch r {
		case ',', ';', '|', '\n':
			return true
		default:
			return false
		}
	})

	var result []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			trimmed = strings.Trim(trimmed, `"'`)
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return []string{}
	}
	return result
}

// expandEnvVars expands ${VAR} and $VAR references against the environment.
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func (c *Config) getStringWithFallback(keys []string, defaultValue string) string {
	for _, key := range keys {
		if val, ok := c.raw[key]; ok && val != "" {
			return expandEnvVars(val)
		}
	}
	return defaultValue
}

func parseEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open config file: %w", err)
	}
	defer file.Close()

	raw := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if utils.IsComment(trimmed) {
			continue
		}

		key, value, ok := utils.SplitKeyValue(line)
		if !ok {
			continue
		}

		if blockValueKeys[key] && trimmed == fmt.Sprintf("%s=\"", key) {
			var blockLines []string
			terminated := false
			for scanner.Scan() {
				next := strings.TrimRight(scanner.Text(), "\r")
				if strings.TrimSpace(next) == "\"" {
					terminated = true
					break
				}
				if utils.IsComment(strings.TrimSpace(next)) {
					continue
				}
				blockLines = append(blockLines, next)
			}
			if !terminated {
				return nil, fmt.Errorf("unterminated multi-line value for %s", key)
			}
			raw[key] = strings.Join(blockLines, "\n")
			continue
		}

		if multiValueKeys[key] {
			if existing, ok := raw[key]; ok && existing != "" {
				raw[key] = existing + "\n" + value
			} else {
				raw[key] = value
			}
		} else {
			raw[key] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return raw, nil
}
