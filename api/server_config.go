package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig configures the attestation registry HTTP server.
type HTTPServerConfig struct {
	// ListenAddr serves the signed operations and public views.
	ListenAddr string

	// MetricsAddr serves the prometheus registry. Empty disables it.
	MetricsAddr string

	// EnablePprof mounts /debug/pprof on the API router.
	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long /drain keeps the server out of rotation
	// before the drain is reported complete.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds the wait for in-flight engine
	// operations on shutdown.
	GracefulShutdownDuration time.Duration

	// ReadTimeout bounds reading a request including its signed body.
	ReadTimeout time.Duration

	WriteTimeout time.Duration
}
