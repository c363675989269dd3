/*
Package resilience provides the circuit breaker guarding span export.

# Overview

When the tracing backend is unreachable every export batch would otherwise
wait for the full retry budget before failing. The breaker opens after a run
of failed exports so later batches are rejected immediately and dropped,
then lets a limited number of probes through once Timeout has passed.

# Usage

	breaker := resilience.New("span-exporter", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	err := breaker.Execute(func() error {
		return send(batch)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// backend considered down, drop the batch
	}

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
