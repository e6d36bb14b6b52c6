// Package orchestrator wires one diskwatch run together: lock, collect,
// evaluate, decide, notify, persist, archive and export metrics.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tis24dev/diskwatch/internal/archive"
	"github.com/tis24dev/diskwatch/internal/checks"
	"github.com/tis24dev/diskwatch/internal/collect"
	"github.com/tis24dev/diskwatch/internal/config"
	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/logging"
	"github.com/tis24dev/diskwatch/internal/metrics"
	"github.com/tis24dev/diskwatch/internal/notify"
	"github.com/tis24dev/diskwatch/internal/state"
	"github.com/tis24dev/diskwatch/internal/tui"
	"github.com/tis24dev/diskwatch/internal/types"
)

// RunError is a failure that ends a run, tagged with the phase and exit code.
type RunError struct {
	Phase string
	Err   error
	Code  types.ExitCode
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Options selects how a run behaves.
type Options struct {
	Test   bool
	Force  bool
	DryRun bool
	JSON   bool
	View   bool
}

// ReadOnly reports whether the run must not lock, send or persist.
func (o Options) ReadOnly() bool {
	return o.DryRun || o.JSON || o.View
}

// RunResult describes what a run did.
type RunResult struct {
	Report      *health.Report
	Decision    state.Decision
	Delivered   bool
	Persisted   bool
	ArchivePath string
	ExitCode    types.ExitCode
}

// Orchestrator coordinates a run using the configured components.
type Orchestrator struct {
	logger    *logging.Logger
	cfg       *config.Config
	collector Collector
	store     StateStore
	notifiers []notify.Notifier
	archiver  ReportArchiver
	exporter  MetricsExporter
	lock      RunLock
	viewer    Viewer
	out       io.Writer
	clock     TimeProvider
}

// New builds an Orchestrator backed by the real system. Optional components
// that fail to initialise are logged and left disabled.
func New(cfg *config.Config, logger *logging.Logger) *Orchestrator {
	o := &Orchestrator{
		logger: logger,
		cfg:    cfg,
		collector: collect.New(collect.Options{
			Devices:        cfg.Devices,
			DeviceTypes:    cfg.DeviceTypes,
			ExcludeFSTypes: cfg.ExcludeFSTypes,
			ExcludeMounts:  cfg.ExcludeMounts,
			RaidEnabled:    cfg.RaidEnabled,
			MdstatPath:     cfg.MdstatPath,
			MountsPath:     cfg.MountsPath,
			SysBlockPath:   cfg.SysBlockPath,
			CommandTimeout: cfg.CommandTimeoutDuration(),
		}, logger),
		store: state.NewStore(cfg.StateFile),
		notifiers: []notify.Notifier{
			notify.NewTelegramNotifier(notify.TelegramConfig{
				Enabled:   cfg.TelegramEnabled,
				BotToken:  cfg.TelegramBotToken,
				ChatID:    cfg.TelegramChatID,
				APIURL:    cfg.TelegramAPIURL,
				ParseMode: cfg.TelegramParseMode,
				Timeout:   time.Duration(cfg.TelegramTimeout) * time.Second,
			}, logger),
		},
		lock: checks.NewChecker(logger,
			checks.GetDefaultCheckerConfig(cfg.StateDir, cfg.LockPath, time.Duration(cfg.LockMaxAgeMinutes)*time.Minute)),
		viewer: tui.Show,
		out:    os.Stdout,
		clock:  realTimeProvider{},
	}

	if cfg.ReportArchiveEnabled {
		a, err := archive.New(archive.Config{
			Dir:           cfg.ReportArchiveDir,
			MaxFiles:      cfg.ReportArchiveMax,
			Recipients:    cfg.AgeRecipients,
			RecipientFile: cfg.AgeRecipientFile,
		}, logger)
		if err != nil {
			logger.Warning("Report archive disabled: %v", err)
		} else {
			o.archiver = a
		}
	}
	if cfg.MetricsEnabled {
		o.exporter = metrics.NewPrometheusExporter(cfg.MetricsPath, logger)
	}
	return o
}

// SetCollector replaces the observation source.
func (o *Orchestrator) SetCollector(c Collector) { o.collector = c }

// SetStateStore replaces the state store.
func (o *Orchestrator) SetStateStore(s StateStore) { o.store = s }

// SetNotifiers replaces the notification channels.
func (o *Orchestrator) SetNotifiers(n ...notify.Notifier) { o.notifiers = n }

// SetArchiver sets the report archive; nil disables archiving.
func (o *Orchestrator) SetArchiver(a ReportArchiver) { o.archiver = a }

// SetMetricsExporter sets the metrics exporter; nil disables export.
func (o *Orchestrator) SetMetricsExporter(e MetricsExporter) { o.exporter = e }

// SetRunLock replaces the run lock.
func (o *Orchestrator) SetRunLock(l RunLock) { o.lock = l }

// SetViewer replaces the interactive viewer.
func (o *Orchestrator) SetViewer(v Viewer) { o.viewer = v }

// SetOutput redirects --json and --dry-run output.
func (o *Orchestrator) SetOutput(w io.Writer) { o.out = w }

// SetClock injects the time source.
func (o *Orchestrator) SetClock(c TimeProvider) { o.clock = c }

func (o *Orchestrator) now() time.Time {
	if o.clock != nil {
		return o.clock.Now()
	}
	return time.Now()
}

// Run performs one full evaluation. The returned result carries the exit
// code even when err is nil.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunResult, error) {
	start := o.now()
	result := &RunResult{ExitCode: types.ExitSuccess}

	if !opts.ReadOnly() {
		if err := o.acquireLock(ctx); err != nil {
			var runErr *RunError
			if errors.As(err, &runErr) {
				result.ExitCode = runErr.Code
			}
			return result, err
		}
		defer o.releaseLock()
	}

	obs, err := o.collector.Collect(ctx)
	if err != nil {
		result.ExitCode = types.ExitGenericError
		return result, &RunError{Phase: "collection", Err: err, Code: types.ExitGenericError}
	}

	o.logger.Step("Evaluating health")
	report := health.Evaluate(health.Input{
		Hostname:    o.cfg.ServerName,
		GeneratedAt: start,
		Devices:     obs.Devices,
		Mounts:      obs.Mounts,
		Arrays:      obs.Arrays,
		RaidDump:    obs.RaidDump,
	}, o.cfg.Thresholds())
	result.Report = report
	result.ExitCode = exitCodeFor(report)
	o.logSummary(report)

	switch {
	case opts.JSON:
		return result, o.writeJSON(report)
	case opts.View:
		if err := o.viewer(ctx, report); err != nil {
			return result, &RunError{Phase: "view", Err: err, Code: types.ExitGenericError}
		}
		return result, nil
	}

	prev, err := o.store.Load()
	if err != nil {
		o.logger.Warning("Ignoring unreadable state file: %v", err)
		prev = nil
	}
	hash := report.StateHash()
	decision := state.Decide(state.Mode{Test: opts.Test, Force: opts.Force}, prev, hash, report.HasIssues())
	result.Decision = decision
	o.logger.Info("Decision: send=%v persist=%v (%s)", decision.Send, decision.Persist, decision.Reason)

	data := &notify.NotificationData{Report: report, Test: opts.Test, Recovery: decision.Recovery}
	if opts.DryRun {
		o.logger.Info("[DRY RUN] Nothing is sent or stored")
		_, err := fmt.Fprintln(o.out, notify.RenderText(data))
		return result, err
	}

	anyEnabled := false
	if decision.Send {
		o.logger.Step("Sending notifications")
		for _, n := range o.notifiers {
			if n.IsEnabled() {
				anyEnabled = true
			}
			if NewNotificationAdapter(n, o.logger).Notify(ctx, data) {
				result.Delivered = true
			}
		}
		if !anyEnabled {
			o.logger.Warning("No notification channel configured, report not sent")
		}
	}

	if decision.Persist {
		switch {
		case decision.Send && anyEnabled && !result.Delivered:
			o.logger.Warning("Delivery not confirmed, state not updated; the next run will retry")
		default:
			if err := o.store.Save(state.State{
				Hash:      hash,
				Severity:  report.Overall,
				Payload:   report.CanonicalState(),
				Timestamp: start,
			}); err != nil {
				o.logger.Error("Failed to save state: %v", err)
			} else {
				result.Persisted = true
				o.logger.Debug("State saved (hash %s)", hash)
			}
		}
	}

	if result.Delivered && o.archiver != nil {
		path, err := o.archiver.Store(ctx, report.Hostname, start, []byte(notify.RenderText(data)))
		if err != nil {
			o.logger.Warning("Failed to archive report: %v", err)
		} else {
			result.ArchivePath = path
		}
	}

	if o.exporter != nil {
		if err := o.exporter.Export(&metrics.RunMetrics{
			Report:           report,
			StartTime:        start,
			Duration:         o.now().Sub(start),
			NotificationSent: result.Delivered,
			ExitCode:         int(result.ExitCode),
		}); err != nil {
			o.logger.Warning("Failed to export metrics: %v", err)
		}
	}

	return result, nil
}

func (o *Orchestrator) acquireLock(ctx context.Context) error {
	if o.lock == nil {
		return nil
	}
	results, err := o.lock.RunAllChecks(ctx)
	for _, r := range results {
		if r.Passed {
			o.logger.Debug("✓ %s: %s", r.Name, r.Message)
		} else {
			o.logger.Error("✗ %s: %s", r.Name, r.Message)
		}
	}
	if err == nil {
		return nil
	}
	code := types.ExitEnvironmentError
	if errors.Is(err, checks.ErrLockHeld) {
		code = types.ExitLockHeld
	}
	return &RunError{Phase: "lock", Err: err, Code: code}
}

func (o *Orchestrator) releaseLock() {
	if o.lock == nil {
		return
	}
	if err := o.lock.ReleaseLock(); err != nil {
		o.logger.Warning("Failed to release lock: %v", err)
	}
}

func (o *Orchestrator) writeJSON(report *health.Report) error {
	payload := struct {
		Report    *health.Report `json:"report"`
		StateHash string         `json:"state_hash"`
	}{report, report.StateHash()}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return &RunError{Phase: "output", Err: err, Code: types.ExitGenericError}
	}
	if _, err := o.out.Write(append(data, '\n')); err != nil {
		return &RunError{Phase: "output", Err: err, Code: types.ExitGenericError}
	}
	return nil
}

func (o *Orchestrator) logSummary(r *health.Report) {
	counts := r.Counts()
	o.logger.Info("Overall: %s (%d critical, %d warning, %d ok)", r.Overall,
		counts[types.SeverityCritical], counts[types.SeverityWarn], counts[types.SeverityOK])
	for _, d := range r.Devices {
		if d.Severity > types.SeverityOK {
			o.logger.Warning("%s %s: %s", d.Name, d.Severity, strings.Join(d.Reasons, "; "))
		}
	}
	for _, u := range r.Mounts {
		if u.Severity > types.SeverityOK {
			o.logger.Warning("%s %s: %d%% used", u.MountPoint, u.Severity, u.Percent)
		}
	}
	for _, a := range r.Arrays {
		if a.Severity > types.SeverityOK {
			o.logger.Warning("%s %s: %s", a.Name, a.Severity, strings.Join(a.Reasons, "; "))
		}
	}
}

func exitCodeFor(r *health.Report) types.ExitCode {
	if r != nil && r.Overall == types.SeverityCritical {
		return types.ExitCriticalHealth
	}
	return types.ExitSuccess
}
