package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/model"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	cfg := &model.Config{
		DatabaseType: string(SQLiteNative),
		DatabaseDir:  t.TempDir(),
		DatabaseFile: "test.db",
	}
	s, err := NewStorage(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addUser(t *testing.T, s *Storage, name string) *model.User {
	t.Helper()
	ctx := context.Background()
	_, err := s.UserAdd(ctx, model.UserInfo{Username: name, PasswordHash: []byte("hash"), Active: true})
	require.NoError(t, err)
	users, err := s.UserGet(ctx, model.UserInfo{Username: name}, model.UserFilter{Username: true})
	require.NoError(t, err)
	require.Len(t, users, 1)
	return users[0]
}

func addPortfolio(t *testing.T, s *Storage, owner *model.User, name string, public bool) *model.Portfolio {
	t.Helper()
	ctx := context.Background()
	id, err := s.PortfolioAdd(ctx, owner, model.PortfolioInfo{Name: name, IsPublic: public})
	require.NoError(t, err)
	portfolios, err := s.PortfolioGet(ctx, model.PortfolioInfo{ID: id}, model.PortfolioFilter{ID: true})
	require.NoError(t, err)
	require.Len(t, portfolios, 1)
	return portfolios[0]
}

func TestUserStore_Lifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	alice := addUser(t, s, "alice")
	assert.True(t, alice.Active)
	assert.Equal(t, []byte("hash"), alice.PasswordHash)

	_, err := s.UserAdd(ctx, model.UserInfo{Username: "alice", PasswordHash: []byte("x")})
	assert.Error(t, err, "username is unique")

	require.NoError(t, s.UserUpdate(ctx, alice, model.UserInfo{Active: false, PasswordHash: []byte("new")}, model.UserFilter{Active: true, PasswordHash: true}))
	users, err := s.UserGet(ctx, model.UserInfo{ID: alice.ID}, model.UserFilter{ID: true})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.False(t, users[0].Active)
	assert.Equal(t, []byte("new"), users[0].PasswordHash)

	require.NoError(t, s.UserDelete(ctx, alice))
	users, err = s.UserGet(ctx, model.UserInfo{ID: alice.ID}, model.UserFilter{ID: true})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestPortfolioStore_AccessibleAndUnique(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	alice := addUser(t, s, "alice")
	bob := addUser(t, s, "bob")

	addPortfolio(t, s, alice, "work", false)
	addPortfolio(t, s, bob, "public", true)
	addPortfolio(t, s, bob, "private", false)

	_, err := s.PortfolioAdd(ctx, alice, model.PortfolioInfo{Name: "work"})
	assert.Error(t, err, "name is unique per owner")

	visible, err := s.PortfolioAccessible(ctx, "alice")
	require.NoError(t, err)
	var names []string
	for _, p := range visible {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"work", "public"}, names)
}

func TestNodeStore_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	p := addPortfolio(t, s, addUser(t, s, "alice"), "cv", false)

	require.NoError(t, s.NodeAdd(ctx, p,
		&model.Node{ID: "root", Type: model.NodeTypeCategory, Title: "Projects", IsVisible: true, Order: 0},
		&model.Node{ID: "n1", ParentID: "root", Type: model.NodeTypeProject, Title: "Compiler", Tags: []string{"go", "llvm"}, Order: 3, IsVisible: false,
			Content: map[string]string{"role": "author"}},
	))

	nodes, err := s.NodeGet(ctx, p, model.NodeInfo{}, model.NodeFilter{})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "root", nodes[0].ID)
	assert.Equal(t, []string{"go", "llvm"}, nodes[1].Tags)
	assert.Equal(t, map[string]string{"role": "author"}, nodes[1].Content)
	assert.False(t, nodes[1].IsVisible)
	assert.Equal(t, p.ID, nodes[1].PortfolioID)
	assert.False(t, nodes[1].Created.IsZero())

	children, err := s.NodeGet(ctx, p, model.NodeInfo{ParentID: "root"}, model.NodeFilter{ParentID: true})
	require.NoError(t, err)
	require.Len(t, children, 1)

	maxOrder, err := s.NodeMaxOrder(ctx, p, "root")
	require.NoError(t, err)
	assert.Equal(t, 3, maxOrder)
	maxOrder, err = s.NodeMaxOrder(ctx, p, "n1")
	require.NoError(t, err)
	assert.Equal(t, -1, maxOrder)
}

func TestNodeStore_UpdateReplacesContent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	p := addPortfolio(t, s, addUser(t, s, "alice"), "cv", false)
	n := &model.Node{ID: "n1", Type: "skill", Title: "Go", Content: map[string]string{"a": "1", "b": "2"}, IsVisible: true}
	require.NoError(t, s.NodeAdd(ctx, p, n))

	visible := false
	order := 9
	err := s.NodeUpdate(ctx, p, n, model.NodeInfo{
		Title:     "Golang",
		Tags:      []string{"backend"},
		Order:     &order,
		IsVisible: &visible,
		Content:   map[string]string{"c": "3"},
	}, model.NodeFilter{Title: true, Tags: true, Order: true, IsVisible: true, Content: true})
	require.NoError(t, err)

	nodes, err := s.NodeGet(ctx, p, model.NodeInfo{ID: "n1"}, model.NodeFilter{ID: true})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Golang", nodes[0].Title)
	assert.Equal(t, "skill", nodes[0].Type)
	assert.Equal(t, 9, nodes[0].Order)
	assert.False(t, nodes[0].IsVisible)
	assert.Equal(t, []string{"backend"}, nodes[0].Tags)
	assert.Equal(t, map[string]string{"c": "3"}, nodes[0].Content)
}

func TestNodeStore_ReorderAndDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	p := addPortfolio(t, s, addUser(t, s, "alice"), "cv", false)
	require.NoError(t, s.NodeAdd(ctx, p,
		&model.Node{ID: "a", Title: "A", Type: "skill"},
		&model.Node{ID: "b", Title: "B", Type: "skill"},
		&model.Node{ID: "c", Title: "C", Type: "skill", Content: map[string]string{"k": "v"}},
	))

	require.NoError(t, s.NodeReorder(ctx, p, []string{"c", "a", "b"}))
	nodes, err := s.NodeGet(ctx, p, model.NodeInfo{}, model.NodeFilter{})
	require.NoError(t, err)
	orders := map[string]int{}
	for _, n := range nodes {
		orders[n.ID] = n.Order
	}
	assert.Equal(t, map[string]int{"c": 0, "a": 1, "b": 2}, orders)

	require.NoError(t, s.NodeDelete(ctx, p, []string{"a", "c"}))
	nodes, err = s.NodeGet(ctx, p, model.NodeInfo{}, model.NodeFilter{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "b", nodes[0].ID)
}

func TestStorage_CascadingDeletes(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	alice := addUser(t, s, "alice")
	p := addPortfolio(t, s, alice, "cv", true)
	require.NoError(t, s.NodeAdd(ctx, p, &model.Node{ID: "n1", Title: "x", Type: "skill"}))
	require.NoError(t, s.AssetAdd(ctx, &model.Asset{ID: "as1", PortfolioID: p.ID, FileName: "cv.pdf", ContentType: "application/pdf", Size: 3, StorageKey: "k"}))

	keys, err := s.PortfolioDelete(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
	nodes, err := s.NodeGet(ctx, p, model.NodeInfo{}, model.NodeFilter{})
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assets, err := s.AssetGet(ctx, model.Asset{PortfolioID: p.ID}, model.AssetFilter{PortfolioID: true})
	require.NoError(t, err)
	assert.Empty(t, assets)

	p2 := addPortfolio(t, s, alice, "second", false)
	require.NoError(t, s.UserDelete(ctx, alice))
	portfolios, err := s.PortfolioGet(ctx, model.PortfolioInfo{ID: p2.ID}, model.PortfolioFilter{ID: true})
	require.NoError(t, err)
	assert.Empty(t, portfolios, "portfolios follow their owner")
}

func TestAssetStore_Filter(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	p := addPortfolio(t, s, addUser(t, s, "alice"), "cv", false)
	require.NoError(t, s.AssetAdd(ctx, &model.Asset{ID: "a1", PortfolioID: p.ID, NodeID: "n1", FileName: "a.png", ContentType: "image/png", Size: 10, StorageKey: "k1"}))
	require.NoError(t, s.AssetAdd(ctx, &model.Asset{ID: "a2", PortfolioID: p.ID, FileName: "b.png", ContentType: "image/png", Size: 20, StorageKey: "k2"}))

	byNode, err := s.AssetGet(ctx, model.Asset{NodeID: "n1"}, model.AssetFilter{NodeID: true})
	require.NoError(t, err)
	require.Len(t, byNode, 1)
	assert.Equal(t, "k1", byNode[0].StorageKey)

	require.NoError(t, s.AssetDelete(ctx, byNode[0]))
	all, err := s.AssetGet(ctx, model.Asset{PortfolioID: p.ID}, model.AssetFilter{PortfolioID: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a2", all[0].ID)
}

func TestNewStorage_RejectsUnknownDriver(t *testing.T) {
	_, err := NewStorage(&model.Config{DatabaseType: "postgres"}, nil)
	assert.Error(t, err)
}
