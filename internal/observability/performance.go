package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats is one sample of process resource usage.
type ProcessStats struct {
	RSSMB      float64 `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
	OpenFiles  int32   `json:"open_files"`
	// Processing is the number of in-flight image requests.
	Processing int64 `json:"processing"`
}

// PerformanceMonitor periodically logs ProcessStats on a cron schedule.
type PerformanceMonitor struct {
	mu         sync.Mutex
	cron       *cron.Cron
	proc       *process.Process
	logger     *slog.Logger
	processing func() int64
}

// NewPerformanceMonitor creates a monitor for the current process.
// processing may be nil; it reports the current in-flight request count.
func NewPerformanceMonitor(logger *slog.Logger, processing func() int64) (*PerformanceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("opening process handle: %w", err)
	}
	if processing == nil {
		processing = func() int64 { return 0 }
	}
	return &PerformanceMonitor{
		proc:       proc,
		logger:     WithComponent(logger, "performance"),
		processing: processing,
	}, nil
}

// Snapshot samples the process. Metrics the platform cannot report are
// left at zero.
func (m *PerformanceMonitor) Snapshot(ctx context.Context) ProcessStats {
	stats := ProcessStats{Processing: m.processing()}
	if mem, err := m.proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		stats.RSSMB = float64(mem.RSS) / 1024 / 1024
	}
	if cpu, err := m.proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	if threads, err := m.proc.NumThreadsWithContext(ctx); err == nil {
		stats.Threads = threads
	}
	if fds, err := m.proc.NumFDsWithContext(ctx); err == nil {
		stats.OpenFiles = fds
	}
	return stats
}

// Start schedules the periodic log using a standard cron spec or a
// descriptor such as "@every 1m".
func (m *PerformanceMonitor) Start(schedule string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return fmt.Errorf("performance monitor already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, m.report); err != nil {
		return fmt.Errorf("invalid performance schedule %q: %w", schedule, err)
	}
	c.Start()
	m.cron = c
	m.logger.Info("performance monitor started", slog.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running report to finish.
func (m *PerformanceMonitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (m *PerformanceMonitor) report() {
	s := m.Snapshot(context.Background())
	m.logger.Info("performance",
		slog.Float64("rss_mb", s.RSSMB),
		slog.Float64("cpu_percent", s.CPUPercent),
		slog.Int("threads", int(s.Threads)),
		slog.Int("open_files", int(s.OpenFiles)),
		slog.Int64("processing", s.Processing),
	)
}
