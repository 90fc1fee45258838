package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/attestation-registry/interfaces"
)

// MultiStorageBackend replicates values over several backends. Reads fall
// back through the backends in order; writes must reach every backend.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend with fallback
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch returns the value from the first available backend that has it.
// ErrKeyNotFound is returned only when every reachable backend reports it.
func (m *MultiStorageBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key))
			continue
		}

		data, err := backend.Fetch(ctx, key)
		if err == nil {
			m.log.Debug("Fetched value",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrKeyNotFound) {
			notFound++
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("key", key),
			"err", err)
	}

	if len(errs) == 0 && notFound > 0 {
		return nil, interfaces.ErrKeyNotFound
	}
	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}

	m.log.Error("All backends failed to fetch value",
		slog.String("key", key),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all backends failed to fetch %s: %w", key, errors.Join(errs...))
}

// Store writes the value to every backend. All backends must be available;
// when one of them rejects the write, the backends already written are
// restored to their previous value and the write fails.
func (m *MultiStorageBackend) Store(ctx context.Context, key string, data []byte) error {
	return m.replicate(ctx, "store", key, func(backend interfaces.StorageBackend) error {
		return backend.Store(ctx, key, data)
	})
}

// Delete removes the value from every backend, with the same all-or-nothing
// rule as Store.
func (m *MultiStorageBackend) Delete(ctx context.Context, key string) error {
	return m.replicate(ctx, "delete", key, func(backend interfaces.StorageBackend) error {
		return backend.Delete(ctx, key)
	})
}

// snapshot is the value a backend held under a key before a write.
type snapshot struct {
	data   []byte
	exists bool
}

func (m *MultiStorageBackend) replicate(ctx context.Context, op, key string, fn func(interfaces.StorageBackend) error) error {
	start := time.Now()
	if len(m.backends) == 0 {
		return fmt.Errorf("%s %s: %w", op, key, interfaces.ErrBackendUnavailable)
	}

	// A replica that misses a write would serve the stale value once it
	// comes back, so writes need all of them.
	var unavailable []string
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			unavailable = append(unavailable, backend.Name())
		}
	}
	if len(unavailable) > 0 {
		m.log.Warn("Refusing "+op+" with unavailable backends",
			slog.String("key", key),
			slog.String("backends", strings.Join(unavailable, ",")))
		return fmt.Errorf("%s %s: %s: %w", op, key, strings.Join(unavailable, ","), interfaces.ErrBackendUnavailable)
	}

	previous := make([]snapshot, len(m.backends))
	for i, backend := range m.backends {
		data, err := backend.Fetch(ctx, key)
		switch {
		case err == nil:
			previous[i] = snapshot{data: data, exists: true}
		case errors.Is(err, interfaces.ErrKeyNotFound):
		default:
			return fmt.Errorf("%s %s: read %s: %w", op, key, backend.Name(), err)
		}
	}

	for i, backend := range m.backends {
		if err := fn(backend); err != nil {
			m.log.Warn("Failed to "+op+" on backend",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key),
				"err", err)
			m.rollback(ctx, key, m.backends[:i], previous[:i])
			return fmt.Errorf("%s %s on %s: %w", op, key, backend.Name(), err)
		}
	}

	m.log.Debug("Replicated "+op,
		slog.String("key", key),
		slog.Int("backends", len(m.backends)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// rollback restores backends to the values they held before a failed write.
func (m *MultiStorageBackend) rollback(ctx context.Context, key string, backends []interfaces.StorageBackend, previous []snapshot) {
	for i, backend := range backends {
		var err error
		if previous[i].exists {
			err = backend.Store(ctx, key, previous[i].data)
		} else {
			err = backend.Delete(ctx, key)
		}
		if err != nil {
			m.log.Error("Failed to roll back backend, replicas diverged",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key),
				"err", err)
		}
	}
}

// Available reports whether every backend is available, which is what a
// write needs.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	if len(m.backends) == 0 {
		return false
	}
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			return false
		}
	}
	return true
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the locations of all backends.
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
