package storage

import (
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/ruteri/attestation-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocation(t *testing.T, uri string) interfaces.StorageBackendLocation {
	t.Helper()
	loc, err := interfaces.NewStorageBackendLocation(uri)
	require.NoError(t, err)
	return loc
}

func TestStorageBackendFactory_StorageBackendFor(t *testing.T) {
	factory := NewStorageBackendFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	dir := t.TempDir()

	tests := []struct {
		name     string
		uri      string
		wantType interface{}
		wantName string
	}{
		{"memory", "memory://", &MemoryBackend{}, "memory"},
		{"file", "file://" + filepath.Join(dir, "records"), &FileBackend{}, "file-records"},
		{"s3", "s3://ak:sk@attestations/prod?region=eu-west-1&endpoint=http://localhost:9000&path_style=true", &S3Backend{}, "s3-attestations"},
		{"ipfs", "ipfs://localhost:5001/attestation?timeout=5s", &IPFSBackend{}, "ipfs-localhost-5001"},
		{"vault", "vault://root@localhost:8200/secret/attestation?insecure=true", &VaultBackend{}, "vault-secret-attestation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := factory.StorageBackendFor(mustLocation(t, tt.uri))
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, backend)
			assert.Equal(t, tt.wantName, backend.Name())
		})
	}
}

func TestStorageBackendFactory_S3LocationHidesSecret(t *testing.T) {
	factory := NewStorageBackendFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	backend, err := factory.StorageBackendFor(mustLocation(t, "s3://ak:supersecret@bucket/prefix"))
	require.NoError(t, err)
	assert.NotContains(t, backend.LocationURI(), "supersecret")
}

func TestStorageBackendFactory_Invalid(t *testing.T) {
	factory := NewStorageBackendFactory(nil)

	_, err := factory.StorageBackendFor(interfaces.StorageBackendLocation{Raw: "github://owner/repo"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = factory.StorageBackendFor(mustLocation(t, "ipfs://localhost:5001/?timeout=soon"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = interfaces.NewStorageBackendLocation("onchain://0x01")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestStorageBackendFactory_CreateMultiBackend(t *testing.T) {
	factory := NewStorageBackendFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))

	single, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{mustLocation(t, "memory://")})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, single)

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		mustLocation(t, "memory://"),
		mustLocation(t, "file://"+t.TempDir()),
	})
	require.NoError(t, err)
	assert.IsType(t, &MultiStorageBackend{}, multi)
	backendContract(t, multi)

	_, err = factory.CreateMultiBackend(nil)
	assert.Error(t, err)

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		mustLocation(t, "memory://"),
		{Raw: "ftp://example.com"},
	})
	assert.Error(t, err)
}

func TestWithoutParam(t *testing.T) {
	loc := mustLocation(t, "postgres://u:p@localhost:5432/db?sslmode=disable&table=records")
	u, err := url.Parse(loc.Raw)
	require.NoError(t, err)

	dsn, table := withoutParam(u, "table")
	assert.Equal(t, "records", table)
	assert.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", dsn)
}
