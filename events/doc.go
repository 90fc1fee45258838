// Package events provides interfaces.EventSink implementations: an in-memory
// sink for tests and inspection, a structured log sink, a redis pub/sub
// publisher and a fan-out sink combining several of them.
package events
