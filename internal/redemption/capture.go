package redemption

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultCooldown = 1500 * time.Millisecond

// Debouncer drops a payload identical to the last accepted one within the
// cooldown. A camera feed reports the same code many times per second.
type Debouncer struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last string
	at   time.Time
}

func NewDebouncer(cooldown time.Duration, now func() time.Time) *Debouncer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Debouncer{cooldown: cooldown, now: now}
}

// Allow reports whether code should be processed and, if so, records it.
func (d *Debouncer) Allow(code string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if code == d.last && now.Sub(d.at) < d.cooldown {
		return false
	}
	d.last = code
	d.at = now
	return true
}

// Feed processes codes from a capture source. Each accepted code is handled
// as soon as it arrives; codes arriving while a scan is in flight are
// dropped, as are repeats suppressed by the debouncer. The returned channel
// closes once codes is closed or ctx ends and every scan has finished.
func (w *Workflow) Feed(ctx context.Context, codes <-chan string, debouncer *Debouncer) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)
		g, gctx := errgroup.WithContext(ctx)

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case code, ok := <-codes:
				if !ok {
					break loop
				}
				if debouncer != nil && !debouncer.Allow(code) {
					continue
				}
				if w.Processing() {
					w.log.Debug("scan dropped while busy")
					continue
				}
				g.Go(func() error {
					result, err := w.Process(gctx, code)
					if errors.Is(err, ErrScanInProgress) {
						return nil
					}
					select {
					case out <- result:
					case <-gctx.Done():
					}
					return nil
				})
			}
		}
		_ = g.Wait()
	}()

	return out
}
