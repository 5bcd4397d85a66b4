package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendDisabled(t *testing.T) {
	backend, err := NewBackend(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, backend)
}

func TestNewBackendUnknownType(t *testing.T) {
	_, err := NewBackend(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}

func TestNewBackendRequiresBucket(t *testing.T) {
	_, err := NewBackend(context.Background(), Config{Type: "s3"})
	assert.Error(t, err)

	_, err = NewBackend(context.Background(), Config{Type: "gcs"})
	assert.Error(t, err)
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "backups/", normalizePrefix("backups"))
	assert.Equal(t, "backups/", normalizePrefix("backups/"))
}
