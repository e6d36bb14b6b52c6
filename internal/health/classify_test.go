package health

import (
	"strings"
	"testing"

	"github.com/tis24dev/diskwatch/internal/types"
)

func healthyHDD(name string) DeviceObservation {
	return DeviceObservation{
		Name:         name,
		Path:         "/dev/" + name,
		Media:        types.MediaHDD,
		Readable:     true,
		HealthPassed: true,
		Temperature:  35,
	}
}

func TestClassifyDeviceHealthyIsOK(t *testing.T) {
	th := DefaultThresholds()
	for _, media := range []types.MediaType{types.MediaHDD, types.MediaSSD} {
		warn, _ := th.TempLimits(media)
		for temp := 0; temp < warn; temp += 7 {
			obs := healthyHDD("sda")
			obs.Media = media
			obs.Temperature = temp
			got := ClassifyDevice(obs, th)
			if got.Severity != types.SeverityOK {
				t.Fatalf("media=%s temp=%d: severity = %s, want OK (reasons %v)", media, temp, got.Severity, got.Reasons)
			}
		}
	}
}

func TestClassifyDevicePendingAlwaysCritical(t *testing.T) {
	th := DefaultThresholds()
	variants := []func(*DeviceObservation){
		func(o *DeviceObservation) {},
		func(o *DeviceObservation) { o.Temperature = 0 },
		func(o *DeviceObservation) { o.Reallocated = 100 },
		func(o *DeviceObservation) { o.Temperature = 99; o.HealthPassed = false },
		func(o *DeviceObservation) { o.Media = types.MediaSSD; o.Uncorrectable = 2 },
	}
	for i, mutate := range variants {
		obs := healthyHDD("sdb")
		obs.Pending = 1
		mutate(&obs)
		got := ClassifyDevice(obs, th)
		if got.Severity != types.SeverityCritical {
			t.Errorf("variant %d: severity = %s, want CRITICAL", i, got.Severity)
		}
	}
}

func TestClassifyDevicePrecedence(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name   string
		mutate func(*DeviceObservation)
		want   types.Severity
		reason string
	}{
		{"health failed", func(o *DeviceObservation) { o.HealthPassed = false }, types.SeverityCritical, "SMART health FAILED"},
		{"uncorrectable", func(o *DeviceObservation) { o.Uncorrectable = 3 }, types.SeverityCritical, "uncorrectable sectors 3"},
		{"hdd critical temp", func(o *DeviceObservation) { o.Temperature = 55 }, types.SeverityCritical, "temperature 55°C >= 55°C"},
		{"hdd warn temp", func(o *DeviceObservation) { o.Temperature = 45 }, types.SeverityWarn, "temperature 45°C >= 45°C"},
		{"ssd 55 is fine", func(o *DeviceObservation) { o.Media = types.MediaSSD; o.Temperature = 55 }, types.SeverityOK, ""},
		{"ssd warn temp", func(o *DeviceObservation) { o.Media = types.MediaSSD; o.Temperature = 60 }, types.SeverityWarn, "temperature 60°C"},
		{"reallocated", func(o *DeviceObservation) { o.Reallocated = 8 }, types.SeverityWarn, "reallocated sectors 8"},
		{"reallocated does not downgrade critical", func(o *DeviceObservation) { o.Reallocated = 8; o.Pending = 1 }, types.SeverityCritical, "pending sectors 1"},
		{"unreadable", func(o *DeviceObservation) { o.Readable = false; o.ReadError = "open failed" }, types.SeverityWarn, "unreadable: open failed"},
		{"unreadable ignores counters", func(o *DeviceObservation) { o.Readable = false; o.Pending = 5 }, types.SeverityWarn, "unreadable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := healthyHDD("sdc")
			tt.mutate(&obs)
			got := ClassifyDevice(obs, th)
			if got.Severity != tt.want {
				t.Fatalf("severity = %s, want %s (reasons %v)", got.Severity, tt.want, got.Reasons)
			}
			if tt.reason != "" && !strings.Contains(strings.Join(got.Reasons, "; "), tt.reason) {
				t.Errorf("reasons %v do not mention %q", got.Reasons, tt.reason)
			}
		})
	}
}

func TestClassifyDeviceCriticalTempHasSingleTempReason(t *testing.T) {
	obs := healthyHDD("sdd")
	obs.Temperature = 60
	got := ClassifyDevice(obs, DefaultThresholds())
	if len(got.Reasons) != 1 {
		t.Fatalf("reasons = %v, want exactly one", got.Reasons)
	}
}

func TestClassifyUsageBoundaries(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		percent int
		want    types.Severity
	}{
		{0, types.SeverityOK},
		{69, types.SeverityOK},
		{70, types.SeverityWarn},
		{84, types.SeverityWarn},
		{85, types.SeverityCritical},
		{100, types.SeverityCritical},
	}
	for _, tt := range tests {
		got := ClassifyUsage(MountUsage{MountPoint: "/srv", Percent: tt.percent}, th)
		if got.Severity != tt.want {
			t.Errorf("percent %d: severity = %s, want %s", tt.percent, got.Severity, tt.want)
		}
	}
}

func TestClassifyArray(t *testing.T) {
	tests := []struct {
		name  string
		array RaidArray
		want  types.Severity
	}{
		{"clean", RaidArray{Name: "md0", Bitmap: "UU"}, types.SeverityOK},
		{"missing member", RaidArray{Name: "md0", Bitmap: "U_"}, types.SeverityCritical},
		{"failed member", RaidArray{Name: "md1", Bitmap: "UU", Failed: []string{"sdb1"}}, types.SeverityCritical},
		{"detail degraded", RaidArray{Name: "md2", Bitmap: "UUU", DetailDegraded: true}, types.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyArray(tt.array)
			if got.Severity != tt.want {
				t.Errorf("severity = %s, want %s", got.Severity, tt.want)
			}
		})
	}
}
