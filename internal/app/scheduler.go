package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ScanScheduler runs a full update scan on a fixed interval. It is only
// started when the configured interval is positive; manual scans through
// the HTTP API stay available either way.
type ScanScheduler struct {
	logger zerolog.Logger
	series *SeriesService

	TickInterval time.Duration
}

func NewScanScheduler(logger zerolog.Logger, series *SeriesService, interval time.Duration) *ScanScheduler {
	return &ScanScheduler{
		logger:       logger,
		series:       series,
		TickInterval: interval,
	}
}

func (sch *ScanScheduler) Run(ctx context.Context) {
	interval := sch.TickInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sch.logger.Info().Msg("scan scheduler stopped")
			return
		case <-ticker.C:
			sch.tick(ctx)
		}
	}
}

func (sch *ScanScheduler) tick(ctx context.Context) {
	if sch.series == nil {
		return
	}
	summary, err := sch.series.CheckUpdates(ctx, nil)
	if err != nil {
		sch.logger.Warn().Err(err).Msg("scheduled scan failed")
		return
	}
	sch.logger.Info().Str("summary", summary).Msg("scheduled scan done")
}
