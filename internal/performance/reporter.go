package performance

import (
	"log/slog"

	"autopilot/internal/domain"
)

// LogReport logs the daily report as structured JSON.
func LogReport(log *slog.Logger, r domain.Report, mode Mode) {
	log.Info("=== DAILY REPORT ===",
		"date", r.Date,
		"mode", mode,
		"opportunities", r.Opportunities,
		"tasks_completed", r.TasksCompleted,
		"new_revenue", r.NewRevenue,
		"optimizations", r.Optimizations,
	)
}

// LogHealth logs a health sample, at Warn when memory is high.
func LogHealth(log *slog.Logger, h Health) {
	attrs := []any{
		"heap_mb", h.HeapAllocMB,
		"goroutines", h.Goroutines,
		"opportunities", h.Opportunities,
		"tasks", h.Tasks,
		"port_available", h.PortAvailable,
	}
	if h.HighMemory {
		log.Warn("high memory usage detected", attrs...)
		return
	}
	log.Debug("health check", attrs...)
}
