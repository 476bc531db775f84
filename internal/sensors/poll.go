// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"log/slog"
	"time"

	"github.com/relabs-tech/bikepath_logger/internal/motion"
)

// Clock stamps readings on the same time base as exposures.
type Clock interface {
	NowNanos() int64
}

// Poll reads src every interval and hands the readings to submit until
// ctx is canceled. Read errors are logged and the sample skipped.
func Poll(ctx context.Context, src IMURawReader, interval time.Duration, clock Clock,
	submit func(motion.Reading), logger *slog.Logger) error {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var failures uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		raw, err := src.ReadRaw()
		if err != nil {
			failures++
			if failures%50 == 1 {
				logger.Warn("sensors: IMU read failed", "error", err, "failures", failures)
			}
			continue
		}
		for _, r := range raw.Readings(clock.NowNanos()) {
			submit(r)
		}
	}
}
