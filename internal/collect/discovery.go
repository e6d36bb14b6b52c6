package collect

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tis24dev/diskwatch/internal/types"
)

// virtualPrefixes are device names that are never physical disks.
var virtualPrefixes = []string{"loop", "zram", "ram", "sr", "fd", "dm-", "md", "nbd", "zd"}

// BlockDevice is a discovered physical disk.
type BlockDevice struct {
	Name       string
	Type       string
	Rotational bool
	// RotaKnown is false when neither lsblk nor sysfs reported the flag.
	RotaKnown bool
	Transport string
	Model     string
	Serial    string
}

// Path returns the /dev node of the device.
func (d BlockDevice) Path() string { return "/dev/" + d.Name }

// Media returns ssd for NVMe or non-rotational devices, hdd otherwise.
func (d BlockDevice) Media() types.MediaType {
	if d.Transport == "nvme" || strings.HasPrefix(d.Name, "nvme") {
		return types.MediaSSD
	}
	if d.RotaKnown && !d.Rotational {
		return types.MediaSSD
	}
	return types.MediaHDD
}

// IsVirtual reports whether a device name belongs to a virtual block device.
func IsVirtual(name string) bool {
	for _, prefix := range virtualPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// NormalizeDeviceName turns "/dev/sda" or "sda" into "sda".
func NormalizeDeviceName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "/dev/") {
		return strings.TrimPrefix(name, "/dev/")
	}
	return filepath.Base(name)
}

// flexBool accepts lsblk's boolean ROTA (util-linux >= 2.33) as well as the
// older "0"/"1" string form.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "1", "true":
		*b = true
	case "0", "false", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", string(data))
	}
	return nil
}

type lsblkOutput struct {
	BlockDevices []struct {
		Name   string    `json:"name"`
		Type   string    `json:"type"`
		Rota   *flexBool `json:"rota"`
		Tran   *string   `json:"tran"`
		Model  *string   `json:"model"`
		Serial *string   `json:"serial"`
	} `json:"blockdevices"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// ParseLsblk decodes `lsblk --json -d -o NAME,TYPE,ROTA,TRAN,MODEL,SERIAL`.
// Virtual and non-disk devices are dropped.
func ParseLsblk(data []byte) ([]BlockDevice, error) {
	var out lsblkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse lsblk output: %w", err)
	}
	var devices []BlockDevice
	for _, raw := range out.BlockDevices {
		name := NormalizeDeviceName(raw.Name)
		if name == "" || IsVirtual(name) || (raw.Type != "" && raw.Type != "disk") {
			continue
		}
		dev := BlockDevice{
			Name:      name,
			Type:      raw.Type,
			Transport: deref(raw.Tran),
			Model:     deref(raw.Model),
			Serial:    deref(raw.Serial),
		}
		if raw.Rota != nil {
			dev.Rotational = bool(*raw.Rota)
			dev.RotaKnown = true
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// Discover returns the physical disks to query. With an explicit device
// list the listed names are kept in order, enriched with whatever metadata
// discovery found; virtual and non-disk names are dropped either way.
func (c *Collector) Discover(ctx context.Context) ([]BlockDevice, error) {
	known, all, err := c.discoverAll(ctx)
	if err != nil && len(c.opts.Devices) == 0 {
		return nil, err
	}
	if err != nil {
		c.logger.Debug("Device metadata unavailable: %v", err)
	}

	if len(c.opts.Devices) == 0 {
		return all, nil
	}

	var selected []BlockDevice
	seen := make(map[string]bool)
	for _, raw := range c.opts.Devices {
		name := NormalizeDeviceName(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if IsVirtual(name) {
			c.logger.Skip("Ignoring virtual device %s", name)
			continue
		}
		if dev, ok := known[name]; ok {
			if dev.Type != "" && dev.Type != "disk" {
				c.logger.Skip("Ignoring %s (type %s)", name, dev.Type)
				continue
			}
			selected = append(selected, dev)
			continue
		}
		dev := BlockDevice{Name: name, Type: "disk"}
		if rota, ok := c.readRotational(ctx, name); ok {
			dev.Rotational = rota
			dev.RotaKnown = true
		}
		selected = append(selected, dev)
	}
	return selected, nil
}

// discoverAll lists every physical disk, preferring lsblk and falling back
// to sysfs. The map also carries non-disk entries so an explicit list can be
// checked against their type.
func (c *Collector) discoverAll(ctx context.Context) (map[string]BlockDevice, []BlockDevice, error) {
	known := make(map[string]BlockDevice)

	if _, err := c.deps.LookPath("lsblk"); err == nil {
		out, runErr := c.run(ctx, "lsblk", "--json", "-d", "-o", "NAME,TYPE,ROTA,TRAN,MODEL,SERIAL")
		if runErr == nil {
			devices, parseErr := ParseLsblk(out)
			if parseErr == nil {
				for _, d := range devices {
					known[d.Name] = d
				}
				c.markNonDisks(out, known)
				return known, devices, nil
			}
			runErr = parseErr
		}
		c.logger.Warning("lsblk failed, falling back to %s: %v", c.opts.SysBlockPath, runErr)
	} else {
		c.logger.Debug("lsblk not found, reading %s", c.opts.SysBlockPath)
	}

	devices, err := c.discoverSysfs(ctx)
	if err != nil {
		return known, nil, err
	}
	for _, d := range devices {
		known[d.Name] = d
	}
	return known, devices, nil
}

// markNonDisks records the type of entries lsblk listed but ParseLsblk
// dropped, so an explicit DEVICES entry pointing at one is rejected.
func (c *Collector) markNonDisks(data []byte, known map[string]BlockDevice) {
	var out lsblkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return
	}
	for _, raw := range out.BlockDevices {
		name := NormalizeDeviceName(raw.Name)
		if _, ok := known[name]; ok || name == "" {
			continue
		}
		known[name] = BlockDevice{Name: name, Type: raw.Type}
	}
}

func (c *Collector) discoverSysfs(ctx context.Context) ([]BlockDevice, error) {
	names, err := c.deps.ReadDirNames(ctx, c.opts.SysBlockPath)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.opts.SysBlockPath, err)
	}
	sort.Strings(names)

	var devices []BlockDevice
	for _, name := range names {
		if IsVirtual(name) {
			continue
		}
		dev := BlockDevice{Name: name, Type: "disk"}
		if strings.HasPrefix(name, "nvme") {
			dev.Transport = "nvme"
		}
		if rota, ok := c.readRotational(ctx, name); ok {
			dev.Rotational = rota
			dev.RotaKnown = true
		}
		if model, err := c.deps.ReadFile(ctx, filepath.Join(c.opts.SysBlockPath, name, "device", "model")); err == nil {
			dev.Model = strings.TrimSpace(string(model))
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func (c *Collector) readRotational(ctx context.Context, name string) (bool, bool) {
	data, err := c.deps.ReadFile(ctx, filepath.Join(c.opts.SysBlockPath, name, "queue", "rotational"))
	if err != nil {
		return false, false
	}
	switch strings.TrimSpace(string(data)) {
	case "1":
		return true, true
	case "0":
		return false, true
	}
	return false, false
}
