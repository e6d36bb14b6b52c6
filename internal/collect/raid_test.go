package collect

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

const mdstatSample = `Personalities : [raid1] [raid6] [raid5] [raid4]
md1 : active raid5 sdd1[3](F) sdc1[1] sde1[0]
      3906764800 blocks super 1.2 level 5, 512k chunk, algorithm 2 [3/2] [U_U]
      bitmap: 2/15 pages [8KB], 65536KB chunk

md0 : active (auto-read-only) raid1 sdb1[1] sda1[0]
      1953382464 blocks super 1.2 [2/2] [UU]
      [=>...................]  resync =  5.0% (97669120/1953382464) finish=150.2min speed=205893K/sec

md127 : inactive sdf[0](S)
      976631512 blocks super 1.2

unused devices: <none>
`

func TestParseMdstat(t *testing.T) {
	arrays := ParseMdstat(mdstatSample)
	if len(arrays) != 3 {
		t.Fatalf("arrays = %d, want 3: %+v", len(arrays), arrays)
	}

	md1 := arrays[0]
	if md1.Name != "md1" || md1.State != "active" || md1.Level != "raid5" {
		t.Errorf("md1 header = %+v", md1)
	}
	if md1.Slots != "3/2" || md1.Bitmap != "U_U" {
		t.Errorf("md1 slots/bitmap = %q %q", md1.Slots, md1.Bitmap)
	}
	if !reflect.DeepEqual(md1.Members, []string{"sdd1", "sdc1", "sde1"}) || !reflect.DeepEqual(md1.Failed, []string{"sdd1"}) {
		t.Errorf("md1 members = %v failed = %v", md1.Members, md1.Failed)
	}

	md0 := arrays[1]
	if md0.State != "active auto-read-only" || md0.Level != "raid1" || md0.Bitmap != "UU" || len(md0.Failed) != 0 {
		t.Errorf("md0 = %+v", md0)
	}

	md127 := arrays[2]
	if md127.State != "inactive" || md127.Level != "" || md127.Bitmap != "" {
		t.Errorf("md127 = %+v", md127)
	}
}

func TestParseMdstatEmpty(t *testing.T) {
	if arrays := ParseMdstat("Personalities : \nunused devices: <none>\n"); len(arrays) != 0 {
		t.Fatalf("arrays = %+v, want none", arrays)
	}
}

func TestDetailDegraded(t *testing.T) {
	tests := []struct {
		detail string
		want   bool
	}{
		{"/dev/md0:\n     Raid Level : raid1\n          State : clean \n", false},
		{"          State : clean, degraded, recovering \n", true},
		{"          State : active, FAILED, Not Started \n", true},
		{"   Failed Devices : 1\n          State : clean\n", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := DetailDegraded(tt.detail); got != tt.want {
			t.Errorf("DetailDegraded(%q) = %t, want %t", tt.detail, got, tt.want)
		}
	}
}

func TestRaidWithoutMdstat(t *testing.T) {
	c := NewWithDeps(Options{RaidEnabled: true}, quietLogger(), newFakeSystem().deps())
	arrays, dump, err := c.Raid(context.Background())
	if err != nil || arrays != nil || dump != "" {
		t.Fatalf("Raid = %v, %q, %v", arrays, dump, err)
	}
}

func TestRaidWithoutMdadmUsesMdstatOnly(t *testing.T) {
	sys := newFakeSystem()
	sys.files["/proc/mdstat"] = mdstatSample
	c := NewWithDeps(Options{RaidEnabled: true}, quietLogger(), sys.deps())

	arrays, dump, err := c.Raid(context.Background())
	if err != nil {
		t.Fatalf("Raid: %v", err)
	}
	if len(arrays) != 3 || arrays[0].DetailDegraded {
		t.Fatalf("arrays = %+v", arrays)
	}
	if strings.Contains(dump, "mdadm") || !strings.HasPrefix(dump, "Personalities") {
		t.Errorf("dump = %q", dump)
	}
}
