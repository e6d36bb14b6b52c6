package health

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/tis24dev/diskwatch/internal/types"
)

// Report is the outcome of one evaluation run.
type Report struct {
	Hostname      string         `json:"hostname"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Overall       types.Severity `json:"overall"`
	Devices       []DeviceStatus `json:"devices"`
	Mounts        []UsageStatus  `json:"mounts"`
	CriticalUsage []UsageStatus  `json:"critical_usage"`
	WarningUsage  []UsageStatus  `json:"warning_usage"`
	Arrays        []RaidStatus   `json:"arrays"`
	RaidDump      string         `json:"raid_dump,omitempty"`
}

// Input groups everything Evaluate needs from the collectors.
type Input struct {
	Hostname    string
	GeneratedAt time.Time
	Devices     Observations
	Mounts      []MountUsage
	Arrays      []RaidArray
	RaidDump    string
}

// Evaluate classifies every observation and computes the overall severity
// as the maximum across devices, mounts and arrays.
func Evaluate(in Input, th Thresholds) *Report {
	report := &Report{
		Hostname:    in.Hostname,
		GeneratedAt: in.GeneratedAt,
		Overall:     types.SeverityOK,
		RaidDump:    in.RaidDump,
	}

	names := make([]string, 0, len(in.Devices))
	for name := range in.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		obs := in.Devices[name]
		if obs.Name == "" {
			obs.Name = name
		}
		status := ClassifyDevice(obs, th)
		report.Devices = append(report.Devices, status)
		report.Overall = types.MaxSeverity(report.Overall, status.Severity)
	}

	mounts := append([]MountUsage(nil), in.Mounts...)
	sort.Slice(mounts, func(i, j int) bool { return mounts[i].MountPoint < mounts[j].MountPoint })
	for _, usage := range mounts {
		status := ClassifyUsage(usage, th)
		report.Mounts = append(report.Mounts, status)
		switch status.Severity {
		case types.SeverityCritical:
			report.CriticalUsage = append(report.CriticalUsage, status)
		case types.SeverityWarn:
			report.WarningUsage = append(report.WarningUsage, status)
		}
		report.Overall = types.MaxSeverity(report.Overall, status.Severity)
	}

	arrays := append([]RaidArray(nil), in.Arrays...)
	sort.Slice(arrays, func(i, j int) bool { return arrays[i].Name < arrays[j].Name })
	for _, array := range arrays {
		status := ClassifyArray(array)
		report.Arrays = append(report.Arrays, status)
		report.Overall = types.MaxSeverity(report.Overall, status.Severity)
	}

	return report
}

// HasIssues reports whether anything is above OK.
func (r *Report) HasIssues() bool {
	return r != nil && r.Overall > types.SeverityOK
}

// CanonicalState renders the problem set that drives deduplication: one line
// per device and array with its severity label, plus the mount points in the
// critical and warning usage lists. Temperatures, counters and percentages
// never appear in it.
func (r *Report) CanonicalState() string {
	var lines []string
	for _, d := range r.Devices {
		lines = append(lines, fmt.Sprintf("device %s %s", d.Name, d.Severity))
	}
	for _, a := range r.Arrays {
		lines = append(lines, fmt.Sprintf("raid %s %s", a.Name, a.Severity))
	}
	for _, u := range r.CriticalUsage {
		lines = append(lines, "usage-critical "+u.MountPoint)
	}
	for _, u := range r.WarningUsage {
		lines = append(lines, "usage-warning "+u.MountPoint)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// StateHash returns the hex BLAKE2b-256 digest of CanonicalState.
func (r *Report) StateHash() string {
	sum := blake2b.Sum256([]byte(r.CanonicalState()))
	return hex.EncodeToString(sum[:])
}

// Counts returns how many findings exist per severity across all sections.
func (r *Report) Counts() map[types.Severity]int {
	counts := map[types.Severity]int{}
	for _, d := range r.Devices {
		counts[d.Severity]++
	}
	for _, m := range r.Mounts {
		counts[m.Severity]++
	}
	for _, a := range r.Arrays {
		counts[a.Severity]++
	}
	return counts
}
