package orchestrator

import "context"

// limiter bounds the number of workflow instances executing at once. A zero
// or negative max means unlimited.
type limiter struct {
	sem chan struct{}
}

func newLimiter(max int) *limiter {
	if max <= 0 {
		return &limiter{}
	}

	return &limiter{sem: make(chan struct{}, max)}
}

// acquire blocks until a slot is free or the context is done.
func (l *limiter) acquire(ctx context.Context) error {
	if l.sem == nil {
		return ctx.Err()
	}

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limiter) release() {
	if l.sem != nil {
		<-l.sem
	}
}
