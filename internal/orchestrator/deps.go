package orchestrator

import (
	"context"
	"time"

	"github.com/tis24dev/diskwatch/internal/checks"
	"github.com/tis24dev/diskwatch/internal/collect"
	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/metrics"
	"github.com/tis24dev/diskwatch/internal/state"
)

// Collector gathers the raw observations of one run.
type Collector interface {
	Collect(ctx context.Context) (*collect.Result, error)
}

// StateStore persists the last committed problem set.
type StateStore interface {
	Load() (*state.State, error)
	Save(st state.State) error
}

// ReportArchiver keeps a copy of every report that was sent.
type ReportArchiver interface {
	Store(ctx context.Context, host string, at time.Time, text []byte) (string, error)
}

// MetricsExporter writes run metrics for node_exporter.
type MetricsExporter interface {
	Export(m *metrics.RunMetrics) error
}

// RunLock guards the state file against overlapping runs.
type RunLock interface {
	RunAllChecks(ctx context.Context) ([]checks.CheckResult, error)
	ReleaseLock() error
}

// Viewer shows a report interactively.
type Viewer func(ctx context.Context, r *health.Report) error

// TimeProvider abstracts time acquisition for determinism in tests.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now() }
