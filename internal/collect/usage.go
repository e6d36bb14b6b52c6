package collect

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tis24dev/diskwatch/internal/health"
)

// pseudoFS lists filesystem types that are not backed by a block device.
var pseudoFS = map[string]bool{
	"sysfs": true, "proc": true, "devtmpfs": true, "tmpfs": true,
	"cgroup": true, "cgroup2": true, "debugfs": true, "tracefs": true,
	"securityfs": true, "hugetlbfs": true, "mqueue": true, "fusectl": true,
	"configfs": true, "pstore": true, "bpf": true, "ramfs": true,
	"rpc_pipefs": true, "nsfs": true, "autofs": true, "efivarfs": true,
	"squashfs": true, "iso9660": true, "devpts": true, "overlay": true,
	"binfmt_misc": true, "fuse.lxcfs": true, "zram": true,
}

// MountEntry is one line of /proc/mounts.
type MountEntry struct {
	Source     string
	MountPoint string
	FSType     string
}

// ParseMounts reads /proc/mounts content. Octal escapes such as \040 in
// mount points are decoded.
func ParseMounts(data []byte) []MountEntry {
	var entries []MountEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		entries = append(entries, MountEntry{
			Source:     unescapeMount(fields[0]),
			MountPoint: unescapeMount(fields[1]),
			FSType:     fields[2],
		})
	}
	return entries
}

func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// filterMounts drops pseudo and excluded filesystem types, excluded mount
// points and second mounts of the same source. Sources are not required to
// be block devices, so ZFS datasets and network mounts are kept unless their
// type is excluded.
func (c *Collector) filterMounts(entries []MountEntry) []MountEntry {
	excludedTypes := make(map[string]bool, len(c.opts.ExcludeFSTypes))
	for _, t := range c.opts.ExcludeFSTypes {
		excludedTypes[t] = true
	}
	excludedMounts := make(map[string]bool, len(c.opts.ExcludeMounts))
	for _, m := range c.opts.ExcludeMounts {
		excludedMounts[filepath.Clean(m)] = true
	}

	seen := make(map[string]bool)
	var kept []MountEntry
	for _, e := range entries {
		if pseudoFS[e.FSType] || excludedTypes[e.FSType] {
			continue
		}
		if excludedMounts[e.MountPoint] {
			continue
		}
		if seen[e.Source] {
			continue
		}
		seen[e.Source] = true
		kept = append(kept, e)
	}
	return kept
}

// Usage reports space usage of every mounted filesystem that is not virtual. A mount whose
// statfs fails or times out is skipped with a warning.
func (c *Collector) Usage(ctx context.Context) ([]health.MountUsage, error) {
	data, err := c.deps.ReadFile(ctx, c.opts.MountsPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.opts.MountsPath, err)
	}

	var usages []health.MountUsage
	for _, e := range c.filterMounts(ParseMounts(data)) {
		if ctx.Err() != nil {
			return usages, ctx.Err()
		}
		u, err := c.deps.Statfs(ctx, e.MountPoint)
		if err != nil {
			c.logger.Warning("Skipping %s: %v", e.MountPoint, err)
			continue
		}
		if u.Total == 0 {
			continue
		}
		usages = append(usages, health.MountUsage{
			Device:     e.Source,
			MountPoint: e.MountPoint,
			FSType:     e.FSType,
			TotalBytes: u.Total,
			UsedBytes:  u.Used,
			AvailBytes: u.Avail,
			Percent:    u.Percent(),
		})
	}
	return usages, nil
}
