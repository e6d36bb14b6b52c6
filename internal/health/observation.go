// Package health classifies disk, filesystem and RAID observations into
// OK/WARN/CRITICAL and builds the per-run report together with the canonical
// problem-set text used for alert deduplication.
package health

import (
	"github.com/tis24dev/diskwatch/internal/types"
)

// DeviceObservation is what one run learned about one block device.
type DeviceObservation struct {
	Name      string          `json:"name"`
	Path      string          `json:"path"`
	Media     types.MediaType `json:"media"`
	Transport string          `json:"transport,omitempty"`
	// ProtocolHint is the smartctl -d value used for the query, if any.
	ProtocolHint string `json:"protocol_hint,omitempty"`
	Model        string `json:"model,omitempty"`
	Serial       string `json:"serial,omitempty"`

	// Readable is false when SMART could not be queried at all.
	Readable  bool   `json:"readable"`
	ReadError string `json:"read_error,omitempty"`

	HealthPassed bool `json:"health_passed"`
	// Temperature is in Celsius; 0 means unknown.
	Temperature   int   `json:"temperature"`
	Reallocated   int64 `json:"reallocated"`
	Pending       int64 `json:"pending"`
	Uncorrectable int64 `json:"uncorrectable"`
	PowerOnHours  int64 `json:"power_on_hours,omitempty"`
}

// Observations maps a device name (sda, nvme0n1) to its observation.
type Observations map[string]DeviceObservation

// MountUsage is the space usage of one mounted filesystem.
type MountUsage struct {
	Device     string `json:"device"`
	MountPoint string `json:"mount_point"`
	FSType     string `json:"fs_type"`
	TotalBytes uint64 `json:"total_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
	AvailBytes uint64 `json:"avail_bytes"`
	Percent    int    `json:"percent"`
}

// RaidArray is one md array as reported by the kernel.
type RaidArray struct {
	Name    string   `json:"name"`
	State   string   `json:"state"`
	Level   string   `json:"level,omitempty"`
	Members []string `json:"members,omitempty"`
	Failed  []string `json:"failed,omitempty"`
	// Slots is the "[n/m]" member count, Bitmap the "[UU_]" activity map.
	Slots  string `json:"slots,omitempty"`
	Bitmap string `json:"bitmap,omitempty"`
	// DetailDegraded is set when mdadm --detail reports a degraded state.
	DetailDegraded bool   `json:"detail_degraded,omitempty"`
	Detail         string `json:"-"`
}
