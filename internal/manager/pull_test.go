package manager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litevault/litevault/internal/metadata"
)

// memoryBackend is an in-memory replication backend for tests.
type memoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: map[string][]byte{}}
}

func (b *memoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memoryBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("artifact not found: " + key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memoryBackend) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memoryBackend) List(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func TestReplicateUploadsArtifactAndRecord(t *testing.T) {
	backend := newMemoryBackend()
	mgr, _ := newTestManager(t, func(o *Options) { o.Remote = backend })

	res := mgr.CreateBackup(context.Background(), metadata.TypeManual, true)
	require.True(t, res.Success, res.Message)

	key := filepath.Base(res.Record.FilePath)
	keys, err := mgr.RemoteKeys(context.Background())
	require.NoError(t, err)
	assert.Contains(t, keys, key)
	assert.Contains(t, keys, res.Record.Name+".json")

	local, err := os.ReadFile(res.Record.FilePath)
	require.NoError(t, err)
	assert.Equal(t, local, backend.objects[key])
}

func TestPullFromRemoteRestoresMissingArtifact(t *testing.T) {
	backend := newMemoryBackend()
	mgr, _ := newTestManager(t, func(o *Options) { o.Remote = backend })

	res := mgr.CreateBackup(context.Background(), metadata.TypeManual, true)
	require.True(t, res.Success, res.Message)

	require.NoError(t, os.Remove(res.Record.FilePath))

	pulled := mgr.PullFromRemote(context.Background(), res.Record.Name)
	require.True(t, pulled.Success, pulled.Message)

	verify := mgr.Verify(res.Record.Name)
	assert.True(t, verify.Success, verify.Message)
}

func TestPullFromRemoteRejectsTamperedReplica(t *testing.T) {
	backend := newMemoryBackend()
	mgr, _ := newTestManager(t, func(o *Options) { o.Remote = backend })

	res := mgr.CreateBackup(context.Background(), metadata.TypeManual, false)
	require.True(t, res.Success, res.Message)

	key := filepath.Base(res.Record.FilePath)
	backend.mu.Lock()
	backend.objects[key] = append(backend.objects[key], "tampered"...)
	backend.mu.Unlock()

	require.NoError(t, os.Remove(res.Record.FilePath))

	pulled := mgr.PullFromRemote(context.Background(), res.Record.Name)
	assert.False(t, pulled.Success)
	assert.True(t, errors.Is(pulled.Err, ErrHashMismatch))

	_, err := os.Stat(res.Record.FilePath)
	assert.True(t, os.IsNotExist(err), "tampered download must not be kept")
}

func TestPullFromRemoteWithoutReplica(t *testing.T) {
	backend := newMemoryBackend()
	mgr, _ := newTestManager(t, func(o *Options) { o.Remote = backend })

	res := mgr.CreateBackup(context.Background(), metadata.TypeManual, true)
	require.True(t, res.Success, res.Message)

	key := filepath.Base(res.Record.FilePath)
	require.NoError(t, backend.Delete(context.Background(), key))
	require.NoError(t, os.Remove(res.Record.FilePath))

	pulled := mgr.PullFromRemote(context.Background(), res.Record.Name)
	assert.False(t, pulled.Success)
	assert.True(t, errors.Is(pulled.Err, ErrNotFound))
}

func TestDeleteRemovesRemoteReplica(t *testing.T) {
	backend := newMemoryBackend()
	mgr, _ := newTestManager(t, func(o *Options) { o.Remote = backend })

	res := mgr.CreateBackup(context.Background(), metadata.TypeManual, true)
	require.True(t, res.Success, res.Message)

	del := mgr.Delete(context.Background(), res.Record.Name)
	require.True(t, del.Success, del.Message)

	keys, err := mgr.RemoteKeys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRemoteKeysWithoutBackend(t *testing.T) {
	mgr, _ := newTestManager(t, nil)

	_, err := mgr.RemoteKeys(context.Background())
	assert.Error(t, err)
}
