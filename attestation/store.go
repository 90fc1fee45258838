package attestation

import (
	"context"
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ruteri/attestation-registry/interfaces"
)

const (
	configKey      = "config"
	attestatorsKey = "attestators"
	userKeyPrefix  = "user/"
)

// RecordStorageKey returns the backend key holding the record for key.
func RecordStorageKey(key ObfuscatedKey) string {
	return userKeyPrefix + hex.EncodeToString(key[:])
}

// Store is the typed view of the engine state on top of a key-addressed
// backend. Every setter replaces exactly one backend key.
type Store struct {
	backend interfaces.StorageBackend
}

// NewStore wraps a storage backend.
func NewStore(backend interfaces.StorageBackend) *Store {
	return &Store{backend: backend}
}

// Backend returns the underlying storage backend.
func (s *Store) Backend() interfaces.StorageBackend {
	return s.backend
}

// Record loads the record stored under key, or ErrNoSuchRecord.
func (s *Store) Record(ctx context.Context, key ObfuscatedKey) (*AttestationRecord, error) {
	data, err := s.fetch(ctx, RecordStorageKey(key))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, ErrNoSuchRecord
	}
	if err != nil {
		return nil, err
	}
	return DecodeRecord(data)
}

// HasRecord reports whether anything is stored under key.
func (s *Store) HasRecord(ctx context.Context, key ObfuscatedKey) (bool, error) {
	_, err := s.fetch(ctx, RecordStorageKey(key))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// SetRecord replaces the record stored under key.
func (s *Store) SetRecord(ctx context.Context, key ObfuscatedKey, record *AttestationRecord) error {
	return s.store(ctx, RecordStorageKey(key), record)
}

// ClearRecord removes the record stored under key.
func (s *Store) ClearRecord(ctx context.Context, key ObfuscatedKey) error {
	if err := s.backend.Delete(ctx, RecordStorageKey(key)); err != nil {
		return fmt.Errorf("clear record %s: %w", key, err)
	}
	return nil
}

// Registry loads the attestator registry, or ErrNotInitialized.
func (s *Store) Registry(ctx context.Context) (*AttestatorRegistry, error) {
	data, err := s.fetch(ctx, attestatorsKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	reg := new(AttestatorRegistry)
	if err := reg.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return reg, nil
}

// SetRegistry replaces the attestator registry.
func (s *Store) SetRegistry(ctx context.Context, reg *AttestatorRegistry) error {
	return s.store(ctx, attestatorsKey, reg)
}

// Config loads the engine config, or ErrNotInitialized.
func (s *Store) Config(ctx context.Context) (*Config, error) {
	data, err := s.fetch(ctx, configKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := cfg.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetConfig replaces the engine config.
func (s *Store) SetConfig(ctx context.Context, cfg *Config) error {
	return s.store(ctx, configKey, cfg)
}

func (s *Store) fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := s.backend.Fetch(ctx, key)
	if err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, fmt.Errorf("fetch %s from %s: %w", key, s.backend.Name(), err)
	}
	return data, err
}

func (s *Store) store(ctx context.Context, key string, v encoding.BinaryMarshaler) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Store(ctx, key, data); err != nil {
		return fmt.Errorf("store %s to %s: %w", key, s.backend.Name(), err)
	}
	return nil
}
