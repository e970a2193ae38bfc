package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"support-chat/internal/core/ports"
)

// SystemMetrics is the health snapshot exposed on the admin dashboard.
type SystemMetrics struct {
	CPUPercent      float64 `json:"cpu_percent"`
	RAMUsedMB       float64 `json:"ram_used_mb"`
	RAMPercent      float64 `json:"ram_percent"`
	DiskPercent     float64 `json:"disk_percent"`
	GoroutinesCount int     `json:"goroutines_count"`
	SweptSessions   int     `json:"swept_sessions_total"`
}

// Monitor runs the periodic housekeeping loop: expired-session sweeps plus a
// system health snapshot for the health endpoint. Redis-backed session
// stores expire natively and report zero sweeps; the in-memory store relies
// on this loop as its backstop (expiry is additionally enforced on every
// read, so a slow sweep never extends a session's life).
type Monitor struct {
	sessions ports.SessionStore
	interval time.Duration
	swept    int
}

// NewMonitor creates a monitor sweeping at the given interval.
func NewMonitor(sessions ports.SessionStore, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Monitor{sessions: sessions, interval: interval}
}

// Run starts the housekeeping loop and blocks until ctx is cancelled.
// Call as a goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("monitor started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor stopped")
			return
		case <-ticker.C:
			n, err := m.sessions.SweepExpired(ctx)
			if err != nil {
				slog.Warn("session sweep failed", "error", err)
				continue
			}
			m.swept += n
			if n > 0 {
				slog.Info("expired sessions swept", "count", n)
			}
		}
	}
}

// Metrics collects a point-in-time system snapshot.
func (m *Monitor) Metrics(ctx context.Context) *SystemMetrics {
	metrics := &SystemMetrics{
		GoroutinesCount: runtime.NumGoroutine(),
		SweptSessions:   m.swept,
	}

	if cpuPercents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercents) > 0 {
		metrics.CPUPercent = cpuPercents[0]
	}
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		metrics.RAMUsedMB = float64(memStat.Used) / 1024 / 1024
		metrics.RAMPercent = memStat.UsedPercent
	}
	if diskStat, err := disk.UsageWithContext(ctx, "/"); err == nil {
		metrics.DiskPercent = diskStat.UsedPercent
	}
	return metrics
}
