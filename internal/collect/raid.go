package collect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/tis24dev/diskwatch/internal/health"
)

var (
	mdHeaderRe = regexp.MustCompile(`^(md\S*)\s*:\s*(\S+)\s*(.*)$`)
	mdSlotsRe  = regexp.MustCompile(`\[(\d+/\d+)\]`)
	mdBitmapRe = regexp.MustCompile(`\[([U_]+)\]`)
	mdMemberRe = regexp.MustCompile(`^([^\[\s]+)\[\d+\]((?:\([A-Z]\))*)$`)
)

// ParseMdstat parses /proc/mdstat content into arrays.
func ParseMdstat(data string) []health.RaidArray {
	var arrays []health.RaidArray
	var current *health.RaidArray

	flush := func() {
		if current != nil {
			arrays = append(arrays, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if m := mdHeaderRe.FindStringSubmatch(trimmed); m != nil && !strings.HasPrefix(line, " ") {
			flush()
			current = &health.RaidArray{Name: m[1], State: m[2]}
			parseMdMembers(current, strings.Fields(m[3]))
			continue
		}
		if current == nil {
			continue
		}
		if current.Bitmap == "" {
			if m := mdBitmapRe.FindStringSubmatch(trimmed); m != nil {
				current.Bitmap = m[1]
			}
		}
		if current.Slots == "" {
			if m := mdSlotsRe.FindStringSubmatch(trimmed); m != nil {
				current.Slots = m[1]
			}
		}
	}
	flush()
	return arrays
}

func parseMdMembers(array *health.RaidArray, tokens []string) {
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "(") {
			// (read-only), (auto-read-only)
			array.State += " " + strings.Trim(tok, "()")
			continue
		}
		m := mdMemberRe.FindStringSubmatch(tok)
		if m == nil {
			if array.Level == "" {
				array.Level = tok
			}
			continue
		}
		array.Members = append(array.Members, m[1])
		if strings.Contains(m[2], "(F)") {
			array.Failed = append(array.Failed, m[1])
		}
	}
}

// DetailDegraded reports whether an `mdadm --detail` output has a State
// line mentioning degraded or FAILED.
func DetailDegraded(detail string) bool {
	for _, line := range strings.Split(detail, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) != "State" {
			continue
		}
		v := strings.ToLower(value)
		return strings.Contains(v, "degraded") || strings.Contains(v, "failed")
	}
	return false
}

// Raid reads the md arrays and, when mdadm is installed, their detail
// output. The returned dump is the raw mdstat followed by each detail.
func (c *Collector) Raid(ctx context.Context) ([]health.RaidArray, string, error) {
	data, err := c.deps.ReadFile(ctx, c.opts.MdstatPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("%s not present, no software RAID", c.opts.MdstatPath)
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read %s: %w", c.opts.MdstatPath, err)
	}

	mdstat := string(data)
	arrays := ParseMdstat(mdstat)
	if len(arrays) == 0 {
		return nil, "", nil
	}

	var dump strings.Builder
	dump.WriteString(strings.TrimRight(mdstat, "\n"))

	mdadm, lookErr := c.deps.LookPath("mdadm")
	if lookErr != nil {
		c.logger.Debug("mdadm not found, using %s only", c.opts.MdstatPath)
		return arrays, dump.String(), nil
	}

	for i := range arrays {
		path := "/dev/" + arrays[i].Name
		out, err := c.run(ctx, mdadm, "--detail", path)
		detail := strings.TrimRight(string(out), "\n")
		if err != nil && detail == "" {
			c.logger.Warning("mdadm --detail %s failed: %v", path, err)
			continue
		}
		arrays[i].Detail = detail
		arrays[i].DetailDegraded = DetailDegraded(detail)
		fmt.Fprintf(&dump, "\n\n# mdadm --detail %s\n%s", path, detail)
	}
	return arrays, dump.String(), nil
}
