package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressFunc is notified after each unit of work completes.
type ProgressFunc func(done, total int, item string)

// ProgressTracker tracks progress of a multi-step operation such as loading
// every file of a session. It logs at most once per LogInterval and forwards
// every step to an optional ProgressFunc.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int
	current     int
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	notify      ProgressFunc
	now         func() time.Time
	mutex       sync.Mutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string
	Total       int
	LogInterval time.Duration
	Logger      Logger
	OnStep      ProgressFunc
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 2 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	start := config.Now()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   start,
		lastLogTime: start,
		logInterval: config.LogInterval,
		notify:      config.OnStep,
		now:         config.Now,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Debug("Starting operation")

	return tracker
}

// Step records one completed item
func (p *ProgressTracker) Step(item string) {
	p.mutex.Lock()
	p.current++
	done, total := p.current, p.total
	now := p.now()
	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.logger.WithFields(Fields{
			"operation":  p.operation,
			"processed":  done,
			"total":      total,
			"percentage": fmt.Sprintf("%.1f%%", p.percentage()),
		}).Info("Progress update")
		p.lastLogTime = now
	}
	p.mutex.Unlock()

	if p.notify != nil {
		p.notify(done, total, item)
	}
}

// Complete logs the final statistics of the operation
func (p *ProgressTracker) Complete() {
	stats := p.Stats()
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"processed": stats.Current,
		"total":     stats.Total,
		"duration":  stats.Duration.String(),
	}).Debug("Operation completed")
}

// Stats returns current progress statistics
func (p *ProgressTracker) Stats() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return ProgressStats{
		Operation:  p.operation,
		Total:      p.total,
		Current:    p.current,
		Percentage: p.percentage(),
		Duration:   p.now().Sub(p.startTime),
	}
}

func (p *ProgressTracker) percentage() float64 {
	if p.total <= 0 {
		return 0
	}
	return float64(p.current) / float64(p.total) * 100
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int           `json:"total"`
	Current    int           `json:"current"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	return fmt.Sprintf("%s: %d/%d (%.1f%%) in %v", ps.Operation, ps.Current, ps.Total, ps.Percentage, ps.Duration)
}
