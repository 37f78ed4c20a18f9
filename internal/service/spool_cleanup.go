package service

import (
	"time"

	"bitwise74/proffer/internal/spool"

	"go.uber.org/zap"
)

// SpoolCleanup periodically removes spool files nobody is going to move anymore.
// It stops when done is closed.
func SpoolCleanup(t, maxAge time.Duration, s *spool.Spooler, done <-chan struct{}) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Spool cleanup attached", zap.Duration("tick_every", t))

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				n, err := s.Sweep(maxAge)
				if err != nil {
					zap.L().Error("Failed to sweep spool directory", zap.Error(err))
					continue
				}

				if n > 0 {
					zap.L().Debug("Cleaned up stale spool files", zap.Int("removed", n))
				}
			}
		}
	}()
}
