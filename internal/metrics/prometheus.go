package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/logging"
	"github.com/tis24dev/diskwatch/internal/version"
)

// TextfileName is the file node_exporter's textfile collector picks up.
const TextfileName = "diskwatch.prom"

// RunMetrics is the snapshot of one run exported as Prometheus metrics.
type RunMetrics struct {
	Report           *health.Report
	StartTime        time.Time
	Duration         time.Duration
	NotificationSent bool
	ExitCode         int
}

// PrometheusExporter writes run metrics in Prometheus textfile format for node_exporter.
type PrometheusExporter struct {
	textfileDir string
	logger      *logging.Logger
}

// NewPrometheusExporter creates a new PrometheusExporter using the provided directory.
func NewPrometheusExporter(textfileDir string, logger *logging.Logger) *PrometheusExporter {
	return &PrometheusExporter{
		textfileDir: strings.TrimRight(textfileDir, "/"),
		logger:      logger,
	}
}

// Path returns the textfile the exporter writes.
func (pe *PrometheusExporter) Path() string {
	return filepath.Join(pe.textfileDir, TextfileName)
}

// Export renders the snapshot through a private registry and replaces the
// textfile atomically.
func (pe *PrometheusExporter) Export(m *RunMetrics) error {
	if pe == nil || m == nil {
		return nil
	}
	if pe.textfileDir == "" {
		return fmt.Errorf("metrics textfile directory is empty")
	}
	if err := os.MkdirAll(pe.textfileDir, 0o755); err != nil {
		return fmt.Errorf("create metrics directory %s: %w", pe.textfileDir, err)
	}

	reg := prometheus.NewRegistry()
	register(reg, m)

	finalPath := pe.Path()
	if err := prometheus.WriteToTextfile(finalPath, reg); err != nil {
		return fmt.Errorf("write metrics file %s: %w", finalPath, err)
	}

	if pe.logger != nil {
		pe.logger.Debug("Prometheus metrics exported to %s", finalPath)
	}
	return nil
}

func register(reg *prometheus.Registry, m *RunMetrics) {
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		reg.MustRegister(g)
		return g
	}
	gaugeVec := func(name, help string, labels ...string) *prometheus.GaugeVec {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
		reg.MustRegister(g)
		return g
	}

	gauge("diskwatch_last_run_timestamp_seconds", "Unix timestamp of the last run").
		Set(float64(m.StartTime.Unix()))
	gauge("diskwatch_run_duration_seconds", "Duration of the last run in seconds").
		Set(m.Duration.Seconds())
	gauge("diskwatch_exit_code", "Exit code of the last run").
		Set(float64(m.ExitCode))
	sent := gauge("diskwatch_notification_sent", "Whether the last run delivered a notification (1) or not (0)")
	if m.NotificationSent {
		sent.Set(1)
	}
	gaugeVec("diskwatch_info", "Static information about this diskwatch instance", "hostname", "version").
		WithLabelValues(hostnameOf(m.Report), version.Version).Set(1)

	r := m.Report
	if r == nil {
		return
	}
	gauge("diskwatch_overall_severity", "Overall severity of the last run (0=OK,1=WARN,2=CRITICAL)").
		Set(float64(r.Overall))

	severity := gaugeVec("diskwatch_device_severity", "Device severity (0=OK,1=WARN,2=CRITICAL)", "device", "media")
	readable := gaugeVec("diskwatch_device_readable", "Whether SMART data could be read (1) or not (0)", "device")
	temperature := gaugeVec("diskwatch_device_temperature_celsius", "Device temperature in Celsius", "device")
	reallocated := gaugeVec("diskwatch_device_reallocated_sectors", "Reallocated sector count", "device")
	pending := gaugeVec("diskwatch_device_pending_sectors", "Current pending sector count", "device")
	uncorrectable := gaugeVec("diskwatch_device_uncorrectable_sectors", "Offline uncorrectable sector count", "device")
	for _, d := range r.Devices {
		severity.WithLabelValues(d.Name, string(d.Media)).Set(float64(d.Severity))
		if !d.Readable {
			readable.WithLabelValues(d.Name).Set(0)
			continue
		}
		readable.WithLabelValues(d.Name).Set(1)
		if d.Temperature > 0 {
			temperature.WithLabelValues(d.Name).Set(float64(d.Temperature))
		}
		reallocated.WithLabelValues(d.Name).Set(float64(d.Reallocated))
		pending.WithLabelValues(d.Name).Set(float64(d.Pending))
		uncorrectable.WithLabelValues(d.Name).Set(float64(d.Uncorrectable))
	}

	usage := gaugeVec("diskwatch_mount_used_percent", "Filesystem usage in percent", "mountpoint", "device")
	for _, u := range r.Mounts {
		usage.WithLabelValues(u.MountPoint, u.Device).Set(float64(u.Percent))
	}

	degraded := gaugeVec("diskwatch_raid_degraded", "Whether the md array is degraded (1) or not (0)", "array", "level")
	for _, a := range r.Arrays {
		value := 0.0
		if a.Severity > 0 {
			value = 1
		}
		degraded.WithLabelValues(a.Name, a.Level).Set(value)
	}
}

func hostnameOf(r *health.Report) string {
	if r == nil {
		return ""
	}
	return r.Hostname
}
