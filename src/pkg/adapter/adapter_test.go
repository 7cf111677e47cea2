package adapter

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/session"
	"portfoliotree/app/src/pkg/storage"
)

type testEnv struct {
	am     *AdapterManager
	dm     *data.DataManager
	logger *log.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &model.Config{
		DatabaseType:   string(storage.SQLiteNative),
		DatabaseDir:    dir,
		DatabaseFile:   "test.db",
		UploadBackend:  model.UploadBackendLocal,
		UploadDir:      filepath.Join(dir, "uploads"),
		UploadMaxBytes: 1024,
	}
	logger := log.NewWriterLogger(io.Discard, log.LevelDebug)
	store, err := storage.NewStorage(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	blobs, err := storage.NewLocalBlobStore(cfg.UploadDir)
	require.NoError(t, err)
	dm, err := data.NewDataManager(context.Background(), store, blobs, cfg, logger)
	require.NoError(t, err)

	sm := session.NewSessionManager(dm, time.Minute, logger)
	t.Cleanup(sm.Close)
	return &testEnv{am: NewAdapterManager(sm, logger), dm: dm, logger: logger}
}

func TestAdapterManager_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.am.AdapterAdd(AdapterTypeCLI)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	env.am.AdapterRegister(AdapterTypeCLI, CLIFactory(env.logger))
	id, instance, err := env.am.AdapterAdd(AdapterTypeCLI)
	require.NoError(t, err)
	assert.Equal(t, AdapterTypeCLI, instance.GetType())

	got, ok := env.am.AdapterGet(id)
	require.True(t, ok)
	assert.Same(t, instance, got)

	cli := instance.(*CLIAdapter)
	sessionID, err := cli.SessionAdd()
	require.NoError(t, err)

	require.NoError(t, env.am.Shutdown(ctx))
	_, ok = env.am.AdapterGet(id)
	assert.False(t, ok)
	_, ok = env.am.SessionGet(sessionID)
	assert.False(t, ok, "stopping the cli adapter drops its sessions")

	assert.ErrorIs(t, env.am.AdapterDelete(ctx, id), model.ErrNotFound)
}
