package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is anything with a Ping method, such as a pgxpool.Pool or sql.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger into a readiness check.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck flags a likely goroutine leak: the probe fails once the
// process holds more goroutines than max.
func GoroutineCountCheck(max int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > max {
			return errors.Errorf("%d goroutines, limit %d", n, max)
		}
		return nil
	}
}

// HeapAllocCheck fails once the live heap exceeds maxBytes. Useful as a
// liveness check on memory-constrained deployments.
func HeapAllocCheck(maxBytes uint64) CheckFunc {
	return func(_ context.Context) error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.HeapAlloc > maxBytes {
			return errors.Errorf("heap alloc %d bytes, limit %d", ms.HeapAlloc, maxBytes)
		}
		return nil
	}
}

// Deadline wraps a check so that it also fails when the sample takes longer
// than the probe budget allows, even if the wrapped check ignores its context.
func Deadline(d time.Duration, check CheckFunc) CheckFunc {
	return func(ctx context.Context) error {
		done := make(chan error, 1)
		go func() { done <- check(ctx) }()

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case err := <-done:
			return err
		case <-timer.C:
			return errors.Errorf("check exceeded %s deadline", d)
		}
	}
}
