package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/attestation-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendContract exercises the behaviour every StorageBackend must share.
func backendContract(t *testing.T, backend interfaces.StorageBackend) {
	t.Helper()
	ctx := context.Background()

	_, err := backend.Fetch(ctx, "user/0011")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, backend.Store(ctx, "user/0011", []byte{0x01, 0x02}))
	data, err := backend.Fetch(ctx, "user/0011")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, data)

	require.NoError(t, backend.Store(ctx, "user/0011", []byte{0xff}))
	data, err = backend.Fetch(ctx, "user/0011")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff}, data)

	require.NoError(t, backend.Store(ctx, "config", []byte("cfg")))
	data, err = backend.Fetch(ctx, "config")
	require.NoError(t, err)
	assert.Equal(t, []byte("cfg"), data)

	require.NoError(t, backend.Delete(ctx, "user/0011"))
	_, err = backend.Fetch(ctx, "user/0011")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	require.NoError(t, backend.Delete(ctx, "user/0011"))

	assert.Error(t, backend.Store(ctx, "../escape", []byte("x")))
	assert.Error(t, backend.Store(ctx, "", []byte("x")))

	assert.True(t, backend.Available(ctx))
	assert.NotEmpty(t, backend.Name())
	assert.NotEmpty(t, backend.LocationURI())
}

func TestMemoryBackend(t *testing.T) {
	backendContract(t, NewMemoryBackend())
}

func TestMemoryBackend_CopiesValues(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	value := []byte{0x01}
	require.NoError(t, backend.Store(ctx, "config", value))
	value[0] = 0x02

	data, err := backend.Fetch(ctx, "config")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, data)

	data[0] = 0x03
	data, err = backend.Fetch(ctx, "config")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, data)
	assert.Equal(t, 1, backend.Len())
}

func TestFileBackend(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	backendContract(t, backend)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"config", true},
		{"attestators", true},
		{"user/4b00ff", true},
		{"a.b-c_d/e", true},
		{"", false},
		{"/config", false},
		{"user/", false},
		{"user//x", false},
		{"../x", false},
		{"user/./x", false},
		{"user x", false},
		{"user\\x", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := validateKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
