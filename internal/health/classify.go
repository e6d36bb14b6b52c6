package health

import (
	"fmt"
	"strings"

	"github.com/tis24dev/diskwatch/internal/types"
)

// DeviceStatus is a classified device observation.
type DeviceStatus struct {
	DeviceObservation
	Severity types.Severity `json:"severity"`
	Reasons  []string       `json:"reasons,omitempty"`
}

// UsageStatus is a classified mount usage.
type UsageStatus struct {
	MountUsage
	Severity types.Severity `json:"severity"`
}

// RaidStatus is a classified md array.
type RaidStatus struct {
	RaidArray
	Severity types.Severity `json:"severity"`
	Reasons  []string       `json:"reasons,omitempty"`
}

// ClassifyDevice applies the device precedence: failed health flag, pending
// sectors, uncorrectable sectors and critical temperature are CRITICAL;
// reallocated sectors and warn temperature are WARN; anything else is OK.
// A device that could not be queried is WARN.
func ClassifyDevice(obs DeviceObservation, th Thresholds) DeviceStatus {
	status := DeviceStatus{DeviceObservation: obs, Severity: types.SeverityOK}

	if !obs.Readable {
		reason := "unreadable"
		if obs.ReadError != "" {
			reason = "unreadable: " + obs.ReadError
		}
		status.Severity = types.SeverityWarn
		status.Reasons = []string{reason}
		return status
	}

	warnTemp, critTemp := th.TempLimits(obs.Media)
	tempKnown := obs.Temperature > 0

	var critical, warning []string
	if !obs.HealthPassed {
		critical = append(critical, "SMART health FAILED")
	}
	if obs.Pending > 0 {
		critical = append(critical, fmt.Sprintf("pending sectors %d", obs.Pending))
	}
	if obs.Uncorrectable > 0 {
		critical = append(critical, fmt.Sprintf("uncorrectable sectors %d", obs.Uncorrectable))
	}
	if tempKnown && critTemp > 0 && obs.Temperature >= critTemp {
		critical = append(critical, fmt.Sprintf("temperature %d°C >= %d°C", obs.Temperature, critTemp))
	}
	if obs.Reallocated > 0 {
		warning = append(warning, fmt.Sprintf("reallocated sectors %d", obs.Reallocated))
	}
	if tempKnown && warnTemp > 0 && obs.Temperature >= warnTemp && (critTemp <= 0 || obs.Temperature < critTemp) {
		warning = append(warning, fmt.Sprintf("temperature %d°C >= %d°C", obs.Temperature, warnTemp))
	}

	switch {
	case len(critical) > 0:
		status.Severity = types.SeverityCritical
	case len(warning) > 0:
		status.Severity = types.SeverityWarn
	}
	status.Reasons = append(critical, warning...)
	return status
}

// ClassifyUsage compares a mount's percent-used against the usage limits.
func ClassifyUsage(usage MountUsage, th Thresholds) UsageStatus {
	status := UsageStatus{MountUsage: usage, Severity: types.SeverityOK}
	switch {
	case th.UsageCrit > 0 && usage.Percent >= th.UsageCrit:
		status.Severity = types.SeverityCritical
	case th.UsageWarn > 0 && usage.Percent >= th.UsageWarn:
		status.Severity = types.SeverityWarn
	}
	return status
}

// ClassifyArray marks an array CRITICAL when its member bitmap shows a missing
// slot, a member is flagged failed, or mdadm reports it degraded.
func ClassifyArray(array RaidArray) RaidStatus {
	status := RaidStatus{RaidArray: array, Severity: types.SeverityOK}

	if strings.Contains(array.Bitmap, "_") {
		status.Reasons = append(status.Reasons, fmt.Sprintf("missing member [%s]", array.Bitmap))
	}
	if len(array.Failed) > 0 {
		status.Reasons = append(status.Reasons, "failed member "+strings.Join(array.Failed, ", "))
	}
	if array.DetailDegraded {
		status.Reasons = append(status.Reasons, "mdadm reports degraded")
	}
	if len(status.Reasons) > 0 {
		status.Severity = types.SeverityCritical
	}
	return status
}
