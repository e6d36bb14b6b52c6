// Package collect gathers the raw observations of one run: which block
// devices exist, what SMART says about each, how full the mounted
// filesystems are and what state the md arrays are in.
package collect

import (
	"context"
	"time"

	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/logging"
)

const defaultCommandTimeout = 30 * time.Second

// Options controls what the Collector looks at.
type Options struct {
	// Devices restricts the run to these names; empty means discover.
	Devices []string
	// DeviceTypes maps a device name to a smartctl -d protocol hint.
	DeviceTypes map[string]string

	ExcludeFSTypes []string
	ExcludeMounts  []string

	RaidEnabled  bool
	MdstatPath   string
	MountsPath   string
	SysBlockPath string

	CommandTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MdstatPath == "" {
		o.MdstatPath = "/proc/mdstat"
	}
	if o.MountsPath == "" {
		o.MountsPath = "/proc/mounts"
	}
	if o.SysBlockPath == "" {
		o.SysBlockPath = "/sys/block"
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = defaultCommandTimeout
	}
	return o
}

// Result is everything one collection pass produced.
type Result struct {
	Devices  health.Observations
	Mounts   []health.MountUsage
	Arrays   []health.RaidArray
	RaidDump string
}

// Collector runs the discovery and query steps.
type Collector struct {
	opts   Options
	deps   Deps
	logger *logging.Logger
}

// New creates a Collector backed by the real system.
func New(opts Options, logger *logging.Logger) *Collector {
	return NewWithDeps(opts, logger, Deps{})
}

// NewWithDeps creates a Collector with injected dependencies; nil fields
// fall back to the real implementations.
func NewWithDeps(opts Options, logger *logging.Logger, deps Deps) *Collector {
	opts = opts.withDefaults()
	return &Collector{
		opts:   opts,
		deps:   deps.fill(opts.CommandTimeout),
		logger: logger,
	}
}

// run executes an external command bounded by the command timeout.
func (c *Collector) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CommandTimeout)
	defer cancel()
	return c.deps.RunCommand(ctx, name, args...)
}

// Collect performs a full pass. Failures of a single device, mount or array
// are logged and isolated; only context cancellation aborts the pass.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	res := &Result{}

	c.logger.Step("Discovering block devices")
	devices, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Devices selected: %d", len(devices))

	c.logger.Step("Querying SMART data")
	res.Devices = c.QuerySMART(ctx, devices)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Step("Reading filesystem usage")
	mounts, err := c.Usage(ctx)
	if err != nil {
		c.logger.Warning("Filesystem usage unavailable: %v", err)
	}
	res.Mounts = mounts
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.opts.RaidEnabled {
		c.logger.Step("Reading software RAID status")
		arrays, dump, err := c.Raid(ctx)
		if err != nil {
			c.logger.Warning("RAID status unavailable: %v", err)
		}
		res.Arrays = arrays
		res.RaidDump = dump
	} else {
		c.logger.Skip("RAID evaluation disabled")
	}

	return res, ctx.Err()
}
