/*
Package resilience provides the circuit breaker that guards calls to the
remote session store.

When the store keeps failing at the transport level the breaker opens and
further calls fail fast with ErrCircuitOpen instead of waiting for a timeout
each. Rejections by a reachable store are not failures and never trip it;
callers classify outcomes through Settings.IsFailure.

# Usage

	breaker := resilience.New("session-store", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Execute(func() error {
		return call()
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open
*/
package resilience
