package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Periodic runs the sweeper on an interval until stopped.
type Periodic struct {
	sweeper    *Sweeper
	stagingDir string
	logDir     string
	maxAge     time.Duration
	interval   time.Duration
	logger     *zap.Logger
	stop       chan struct{}
}

// NewPeriodic creates a periodic sweep runner. logDir may be empty.
func NewPeriodic(stagingDir, logDir string, maxAge, interval time.Duration, logger *zap.Logger) *Periodic {
	return &Periodic{
		sweeper:    NewSweeper(logger),
		stagingDir: stagingDir,
		logDir:     logDir,
		maxAge:     maxAge,
		interval:   interval,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Start begins the sweep goroutine
func (p *Periodic) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop signals the sweep goroutine to exit
func (p *Periodic) Stop() {
	close(p.stop)
}

func (p *Periodic) run(ctx context.Context) {
	p.sweep()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Periodic) sweep() {
	p.sweeper.SweepStaging(p.stagingDir, p.maxAge)
	if p.logDir != "" {
		res := p.sweeper.SweepLogs(p.logDir, p.maxAge)
		if len(res.Errors) > 0 {
			p.logger.Warn("Log sweep finished with errors", zap.Int("errors", len(res.Errors)))
		}
	}
}
