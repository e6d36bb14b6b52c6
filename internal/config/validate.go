package config

import (
	"fmt"

	"github.com/gookit/validate"
)

// Validate checks ranges with the struct tags and then the rules that span
// several fields. Missing Telegram credentials are not an error; the run
// continues without notification.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid configuration: %s", v.Errors.One())
	}

	pairs := []struct {
		warnKey, critKey string
		warn, crit       int
	}{
		{"HDD_TEMP_WARN", "HDD_TEMP_CRIT", c.HDDTempWarn, c.HDDTempCrit},
		{"SSD_TEMP_WARN", "SSD_TEMP_CRIT", c.SSDTempWarn, c.SSDTempCrit},
		{"USAGE_WARN", "USAGE_CRIT", c.UsageWarn, c.UsageCrit},
	}
	for _, p := range pairs {
		if p.warn >= p.crit {
			return fmt.Errorf("invalid configuration: %s (%d) must be lower than %s (%d)",
				p.warnKey, p.warn, p.critKey, p.crit)
		}
	}

	if c.MetricsEnabled && c.MetricsPath == "" {
		return fmt.Errorf("invalid configuration: METRICS_ENABLED requires METRICS_PATH")
	}
	if c.ReportArchiveEnabled && c.ReportArchiveDir == "" {
		return fmt.Errorf("invalid configuration: REPORT_ARCHIVE_ENABLED requires REPORT_ARCHIVE_DIR")
	}
	return nil
}
