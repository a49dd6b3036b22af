package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is the probe surface of a connection pool. pgxpool.Pool satisfies
// it directly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a storage backend through its pool.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// GoroutineCountCheck fails once the process holds more goroutines than
// limit. On this service a runaway count usually means leaked checklist
// sessions or a gateway call that never returns.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, limit)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when any recorded garbage collection pause ran
// longer than limit, a sign the heap has outgrown the instance.
func GCMaxPauseCheck(limit time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > limit {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, limit)
			}
		}
		return nil
	}
}
