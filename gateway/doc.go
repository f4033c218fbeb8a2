// Package gateway mediates every call to the external model provider. It is
// the only component holding mutable shared state in the core (the circuit
// breaker and the connection pool) and the only component allowed to mutate
// either.
//
// The Gateway bounds concurrency through a lease-based connection pool,
// retries transient upstream failures with jittered exponential backoff,
// trips a circuit breaker on repeated failures, and degrades to a
// deterministic fallback (rule-based classification, templated text) instead
// of surfacing provider outages to the pipeline. Every successful call is
// cost-accounted per calling agent in the CostLedger and exposed through
// Status().
package gateway
