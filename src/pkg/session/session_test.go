package session

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/storage"
)

func newTestManager(t *testing.T) *SessionManager {
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

	sm := NewSessionManager(dm, time.Minute, logger)
	t.Cleanup(sm.Close)
	return sm
}

// run executes a command line given as separate words
func run(t *testing.T, sm *SessionManager, id string, scope, op string, args ...string) (interface{}, error) {
	t.Helper()
	return sm.SessionRun(context.Background(), id, model.Command{Scope: scope, Operation: op, Args: args})
}

func mustRun(t *testing.T, sm *SessionManager, id string, scope, op string, args ...string) interface{} {
	t.Helper()
	result, err := run(t, sm, id, scope, op, args...)
	require.NoError(t, err, "%s %s %v", scope, op, args)
	return result
}

// loggedIn returns a new session logged in as a freshly created user
func loggedIn(t *testing.T, sm *SessionManager, username string) string {
	t.Helper()
	id, err := sm.SessionAdd()
	require.NoError(t, err)
	if _, err := run(t, sm, id, "user", "add", username, "password"); err != nil {
		require.ErrorIs(t, err, model.ErrExists)
	}
	mustRun(t, sm, id, "user", "login", username, "password")
	return id
}

func TestCommandValidate(t *testing.T) {
	logger := log.NewWriterLogger(io.Discard, log.LevelDebug)
	tests := []struct {
		name    string
		cmd     model.Command
		wantErr bool
	}{
		{"valid", model.Command{Scope: "portfolio", Operation: "list"}, false},
		{"unbounded args", model.Command{Scope: "node", Operation: "add", Args: []string{"-", "Title", "a:b", "c:d", "e:f"}}, false},
		{"missing scope", model.Command{Operation: "list"}, true},
		{"unknown scope", model.Command{Scope: "widget", Operation: "list"}, true},
		{"unknown operation", model.Command{Scope: "node", Operation: "connect"}, true},
		{"too few args", model.Command{Scope: "user", Operation: "login", Args: []string{"alice"}}, true},
		{"too many args", model.Command{Scope: "portfolio", Operation: "list", Args: []string{"x"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCommand(tt.cmd, logger)
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.Equal(t, "node move <node> <parent|-> [order]", Usage("node", "move"))
	assert.Empty(t, Usage("node", "nope"))
}

func TestParseNodeFields(t *testing.T) {
	var info model.NodeInfo
	err := parseNodeFields(&info, []string{"type:project", "url:https://example.com/x", "tags:go,cli", "order:3", "visible:false", "role:lead"})
	require.NoError(t, err)
	assert.Equal(t, "project", info.Type)
	assert.Equal(t, "https://example.com/x", info.URL)
	assert.Equal(t, []string{"go", "cli"}, info.Tags)
	require.NotNil(t, info.Order)
	assert.Equal(t, 3, *info.Order)
	require.NotNil(t, info.IsVisible)
	assert.False(t, *info.IsVisible)
	assert.Equal(t, map[string]string{"role": "lead"}, info.Content)

	assert.ErrorIs(t, parseNodeFields(&info, []string{"nocolon"}), model.ErrInvalidInput)
	assert.ErrorIs(t, parseNodeFields(&info, []string{"order:first"}), model.ErrInvalidInput)
}

func TestSession_PortfolioAndNodes(t *testing.T) {
	sm := newTestManager(t)
	id := loggedIn(t, sm, "alice")

	s, ok := sm.SessionGet(id)
	require.True(t, ok)
	assert.Equal(t, "alice @ ", s.Prompt())

	mustRun(t, sm, id, "portfolio", "add", "work", "My work", "public")
	assert.Equal(t, "alice @ work", s.Prompt())

	mustRun(t, sm, id, "node", "add", "-", "Projects")
	mustRun(t, sm, id, "node", "add", "-", "Skills")
	mustRun(t, sm, id, "node", "add", "1", "Alpha", "type:project", "tags:go,cli")
	mustRun(t, sm, id, "node", "add", "1", "Beta", "type:project")

	result := mustRun(t, sm, id, "portfolio", "view")
	view, ok := result.(*data.View)
	require.True(t, ok)
	require.Len(t, view.Outline, 4)
	assert.Equal(t, "Projects", view.Outline[0].Node.Title)
	assert.Equal(t, "Alpha", view.Outline[1].Node.Title)
	assert.Equal(t, "Beta", view.Outline[2].Node.Title)
	assert.Equal(t, "Skills", view.Outline[3].Node.Title)

	// Beta first, then Alpha
	mustRun(t, sm, id, "node", "reorder", "1", "1.2", "1.1")
	view = mustRun(t, sm, id, "portfolio", "view", "tree").(*data.View)
	require.Len(t, view.Tree, 2)
	require.Len(t, view.Tree[0].Children, 2)
	assert.Equal(t, "Beta", view.Tree[0].Children[0].Node.Title)

	// Move Alpha under Skills
	mustRun(t, sm, id, "node", "move", "1.2", "2")
	view = mustRun(t, sm, id, "portfolio", "view", "tree").(*data.View)
	require.Len(t, view.Tree[1].Children, 1)
	assert.Equal(t, "Alpha", view.Tree[1].Children[0].Node.Title)

	_, err := run(t, sm, id, "node", "move", "1", "1.1")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = run(t, sm, id, "node", "delete", "7")
	assert.ErrorIs(t, err, model.ErrNotFound)

	found := mustRun(t, sm, id, "node", "find", "alpha").([]*model.Node)
	require.NotEmpty(t, found)
	assert.Equal(t, "Alpha", found[0].Title)

	board := mustRun(t, sm, id, "portfolio", "view", "board").(*data.View)
	assert.NotEmpty(t, board.Groups)
}

func TestSession_HiddenNodesAndVisitors(t *testing.T) {
	sm := newTestManager(t)
	owner := loggedIn(t, sm, "alice")
	mustRun(t, sm, owner, "portfolio", "add", "work", "", "public")
	mustRun(t, sm, owner, "node", "add", "-", "Public")
	mustRun(t, sm, owner, "node", "add", "-", "Secret")
	mustRun(t, sm, owner, "node", "hide", "2")

	visitor, err := sm.SessionAdd()
	require.NoError(t, err)
	mustRun(t, sm, visitor, "portfolio", "select", "work")

	view := mustRun(t, sm, visitor, "portfolio", "view", "grid").(*data.View)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Public", view.Items[0].Title)

	_, err = run(t, sm, visitor, "node", "add", "-", "Nope")
	assert.ErrorIs(t, err, model.ErrPermission)

	mustRun(t, sm, owner, "portfolio", "permission", "work", "private")
	_, err = run(t, sm, visitor, "portfolio", "view")
	assert.ErrorIs(t, err, model.ErrNotFound)

	mustRun(t, sm, owner, "node", "show", "2")
	view = mustRun(t, sm, owner, "portfolio", "view", "grid").(*data.View)
	assert.Len(t, view.Items, 2)
}

func TestSession_UserCommands(t *testing.T) {
	sm := newTestManager(t)
	id := loggedIn(t, sm, "alice")

	_, err := run(t, sm, id, "user", "update", "bob", "carol")
	assert.ErrorIs(t, err, model.ErrPermission)
	mustRun(t, sm, id, "user", "update", "alice", "-", "new-password")

	mustRun(t, sm, id, "user", "logout")
	_, err = run(t, sm, id, "portfolio", "add", "x")
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	_, err = run(t, sm, id, "user", "login", "alice", "password")
	assert.Error(t, err)
	mustRun(t, sm, id, "user", "login", "alice", "new-password")

	_, err = run(t, sm, id, "system", "exit")
	assert.ErrorIs(t, err, ErrExit)
}

func TestSession_Assets(t *testing.T) {
	sm := newTestManager(t)
	id := loggedIn(t, sm, "alice")
	mustRun(t, sm, id, "portfolio", "add", "work")
	mustRun(t, sm, id, "node", "add", "-", "Projects")

	dir := t.TempDir()
	src := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(src, []byte("curriculum"), 0o644))

	asset := mustRun(t, sm, id, "asset", "add", src, "1").(*model.Asset)
	assert.Equal(t, "cv.txt", asset.FileName)
	assert.EqualValues(t, 10, asset.Size)
	assert.NotEmpty(t, asset.NodeID)

	assets := mustRun(t, sm, id, "asset", "list").([]*model.Asset)
	require.Len(t, assets, 1)

	dst := filepath.Join(dir, "copy.txt")
	mustRun(t, sm, id, "asset", "get", asset.ID, dst)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "curriculum", string(b))

	mustRun(t, sm, id, "asset", "delete", asset.ID)
	assets = mustRun(t, sm, id, "asset", "list").([]*model.Asset)
	assert.Empty(t, assets)

	_, err = run(t, sm, id, "asset", "add", dir)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestSessionManager_Events(t *testing.T) {
	sm := newTestManager(t)
	first := loggedIn(t, sm, "alice")
	second := loggedIn(t, sm, "alice")

	mustRun(t, sm, first, "portfolio", "add", "work")
	mustRun(t, sm, second, "portfolio", "select", "work")

	mustRun(t, sm, first, "portfolio", "update", "career")
	sm.dataManager.EventManager.Wait()
	s2, _ := sm.SessionGet(second)
	assert.Equal(t, "alice @ career", s2.Prompt())

	mustRun(t, sm, first, "portfolio", "delete")
	sm.dataManager.EventManager.Wait()
	_, err := s2.PortfolioGet()
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	mustRun(t, sm, first, "user", "delete", "alice")
	sm.dataManager.EventManager.Wait()
	assert.Nil(t, s2.User())
}

func TestSessionManager_Lifecycle(t *testing.T) {
	sm := newTestManager(t)
	id, err := sm.SessionAdd()
	require.NoError(t, err)
	assert.Equal(t, 1, sm.SessionCount())

	_, err = run(t, sm, "missing", "portfolio", "list")
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	sm.cleanupInactiveSessions(time.Now())
	assert.Equal(t, 1, sm.SessionCount())
	sm.cleanupInactiveSessions(time.Now().Add(time.Hour))
	assert.Equal(t, 0, sm.SessionCount())

	id, err = sm.SessionAdd()
	require.NoError(t, err)
	sm.SessionDelete(id)
	assert.Equal(t, 0, sm.SessionCount())

	id, err = sm.SessionAdd()
	require.NoError(t, err)
	sm.Close()
	_, err = run(t, sm, id, "portfolio", "list")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSessionManager_RunStopsOnCancel(t *testing.T) {
	sm := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := TokenIssue("session-1", time.Hour, secret)
	require.NoError(t, err)

	id, err := TokenValidate(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "session-1", id)

	_, err = TokenValidate(token, []byte("other"))
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	expired, err := TokenIssue("session-1", -time.Minute, secret)
	require.NoError(t, err)
	_, err = TokenValidate(expired, secret)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	_, err = TokenValidate("garbage", secret)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestRedactArgs(t *testing.T) {
	assert.Equal(t, []string{"alice", "***"}, redactArgs(model.Command{Scope: "user", Operation: "login", Args: []string{"alice", "pw"}}))
	assert.Equal(t, []string{"alice", "-", "***"}, redactArgs(model.Command{Scope: "user", Operation: "update", Args: []string{"alice", "-", "pw"}}))
	assert.Equal(t, []string{"a"}, redactArgs(model.Command{Scope: "node", Operation: "find", Args: []string{"a"}}))
}
