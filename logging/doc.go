// Package logging provides a minimal logging interface and adapters for ReplyPipe.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the router, gateway and stages use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - PipelineLogger with contextual helpers (component, conversation, task)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	rp := replypipe.New(replypipe.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
