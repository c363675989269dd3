package monitoring

import "time"

// Timer measures an operation and records it into a histogram of the
// registry.
type Timer struct {
	start    time.Time
	registry *Registry
	name     string
	labels   Labels
}

// NewTimer starts a timer for the histogram name.
func NewTimer(registry *Registry, name string, labels Labels) *Timer {
	return &Timer{
		start:    time.Now(),
		registry: registry,
		name:     name,
		labels:   labels,
	}
}

// Stop records the elapsed time in seconds and returns it.
func (t *Timer) Stop() (time.Duration, error) {
	elapsed := time.Since(t.start)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, t.registry.Observe(t.name, t.labels, elapsed.Seconds())
}
