package site

import (
	"log/slog"
	"sync/atomic"
)

// progress logs build completion in steps of ten percent.
type progress struct {
	logger  *slog.Logger
	total   int64
	done    atomic.Int64
	enabled bool
}

func newProgress(logger *slog.Logger, total int, enabled bool) *progress {
	return &progress{logger: logger, total: int64(total), enabled: enabled}
}

func (p *progress) step() {
	if !p.enabled || p.total == 0 {
		return
	}
	n := p.done.Add(1)
	if prev, cur := (n-1)*10/p.total, n*10/p.total; cur != prev {
		p.logger.Info("build: progress",
			slog.Int64("done", n),
			slog.Int64("total", p.total),
			slog.Int64("percent", cur*10))
	}
}
