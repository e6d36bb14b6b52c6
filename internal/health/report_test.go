package health

import (
	"strings"
	"testing"
	"time"

	"github.com/tis24dev/diskwatch/internal/types"
)

func sampleInput() Input {
	ssd := healthyHDD("nvme0n1")
	ssd.Media = types.MediaSSD
	ssd.Temperature = 41
	return Input{
		Hostname:    "nas",
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Devices: Observations{
			"sdb":     healthyHDD("sdb"),
			"sda":     healthyHDD("sda"),
			"nvme0n1": ssd,
		},
		Mounts: []MountUsage{
			{Device: "/dev/sda1", MountPoint: "/", FSType: "ext4", Percent: 40},
			{Device: "/dev/sdb1", MountPoint: "/srv", FSType: "xfs", Percent: 12},
		},
		Arrays: []RaidArray{{Name: "md0", Bitmap: "UU"}},
	}
}

func TestEvaluateAllHealthyIsOK(t *testing.T) {
	report := Evaluate(sampleInput(), DefaultThresholds())
	if report.Overall != types.SeverityOK {
		t.Fatalf("Overall = %s, want OK", report.Overall)
	}
	if report.HasIssues() {
		t.Fatal("HasIssues() = true for a healthy host")
	}
	if len(report.Devices) != 3 {
		t.Fatalf("devices = %d, want 3", len(report.Devices))
	}
	if report.Devices[0].Name != "nvme0n1" || report.Devices[2].Name != "sdb" {
		t.Errorf("devices not sorted: %s .. %s", report.Devices[0].Name, report.Devices[2].Name)
	}
}

func TestEvaluateOverallIsMaximum(t *testing.T) {
	in := sampleInput()
	warm := in.Devices["sda"]
	warm.Temperature = 47
	in.Devices["sda"] = warm
	in.Mounts[1].Percent = 90

	report := Evaluate(in, DefaultThresholds())
	if report.Overall != types.SeverityCritical {
		t.Fatalf("Overall = %s, want CRITICAL", report.Overall)
	}
	if len(report.CriticalUsage) != 1 || report.CriticalUsage[0].MountPoint != "/srv" {
		t.Fatalf("CriticalUsage = %+v", report.CriticalUsage)
	}
	if len(report.WarningUsage) != 0 {
		t.Errorf("WarningUsage = %+v, want empty", report.WarningUsage)
	}
	counts := report.Counts()
	if counts[types.SeverityWarn] != 1 || counts[types.SeverityCritical] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
	if d, ok := deviceByName(report, "sda"); !ok || d.Severity != types.SeverityWarn {
		t.Errorf("Device(sda) = %+v, %v", d, ok)
	}
}

func deviceByName(r *Report, name string) (DeviceStatus, bool) {
	for _, d := range r.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceStatus{}, false
}

func TestEvaluateDegradedArrayIsCritical(t *testing.T) {
	in := sampleInput()
	in.Arrays = []RaidArray{{Name: "md0", Bitmap: "U_"}}
	report := Evaluate(in, DefaultThresholds())
	if report.Overall != types.SeverityCritical {
		t.Fatalf("Overall = %s, want CRITICAL", report.Overall)
	}
}

func TestStateHashIgnoresCosmeticDrift(t *testing.T) {
	th := DefaultThresholds()
	first := Evaluate(sampleInput(), th)

	in := sampleInput()
	drift := in.Devices["sda"]
	drift.Temperature = 39
	drift.PowerOnHours = 12345
	in.Devices["sda"] = drift
	in.Mounts[0].Percent = 55
	in.GeneratedAt = in.GeneratedAt.Add(time.Hour)
	second := Evaluate(in, th)

	if first.StateHash() != second.StateHash() {
		t.Fatalf("hash changed on cosmetic drift:\n%s\n---\n%s", first.CanonicalState(), second.CanonicalState())
	}
}

func TestStateHashChangesOnTransition(t *testing.T) {
	th := DefaultThresholds()
	ok := Evaluate(sampleInput(), th)

	in := sampleInput()
	hot := in.Devices["sdb"]
	hot.Temperature = 50
	in.Devices["sdb"] = hot
	warn := Evaluate(in, th)

	if ok.StateHash() == warn.StateHash() {
		t.Fatal("hash unchanged after OK -> WARN transition")
	}

	// Same problem set again yields the same hash.
	again := Evaluate(in, th)
	if warn.StateHash() != again.StateHash() {
		t.Fatal("hash not stable for identical problem set")
	}
}

func TestStateHashChangesOnUsageListMembership(t *testing.T) {
	th := DefaultThresholds()
	in := sampleInput()
	in.Mounts[0].Percent = 75
	warn := Evaluate(in, th)

	in.Mounts[0].Percent = 88
	crit := Evaluate(in, th)

	if warn.StateHash() == crit.StateHash() {
		t.Fatal("hash unchanged when a mount moved from warning to critical")
	}
	if !strings.Contains(crit.CanonicalState(), "usage-critical /") {
		t.Errorf("canonical state missing critical mount:\n%s", crit.CanonicalState())
	}
}

func TestCanonicalStateIndependentOfInputOrder(t *testing.T) {
	th := DefaultThresholds()
	a := sampleInput()
	b := sampleInput()
	b.Mounts[0], b.Mounts[1] = b.Mounts[1], b.Mounts[0]
	b.Arrays = append(b.Arrays, RaidArray{Name: "md1", Bitmap: "UU"})
	a.Arrays = append([]RaidArray{{Name: "md1", Bitmap: "UU"}}, a.Arrays...)

	if Evaluate(a, th).CanonicalState() != Evaluate(b, th).CanonicalState() {
		t.Fatal("canonical state depends on input order")
	}
}
