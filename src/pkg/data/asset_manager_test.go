package data

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/model"
)

func TestAssetAdd_StoresBlobAndMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	p := env.portfolio(t, alice, "cv", true)

	asset, err := env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{
		FileName: `C:\Users\alice\resume.pdf`,
		Size:     -1,
		Body:     strings.NewReader("%PDF-1.7"),
	})
	require.NoError(t, err)
	assert.Equal(t, "resume.pdf", asset.FileName)
	assert.Equal(t, "application/pdf", asset.ContentType)
	assert.EqualValues(t, 8, asset.Size)
	assert.True(t, strings.HasSuffix(asset.StorageKey, ".pdf"))

	got, rc, err := env.dm.AssetManager.AssetOpen(ctx, nil, p.ID, asset.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(body))
	assert.Equal(t, asset.ID, got.ID)
}

func TestAssetAdd_SizeLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	p := env.portfolio(t, alice, "cv", false)
	big := bytes.Repeat([]byte("x"), 65)

	_, err := env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{FileName: "big.bin", Size: 65, Body: bytes.NewReader(big)})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{FileName: "big.bin", Size: -1, Body: bytes.NewReader(big)})
	assert.ErrorIs(t, err, model.ErrInvalidInput, "size is enforced on the stream too")

	list, err := env.dm.AssetManager.AssetList(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAssetAdd_RequiresOwnerAndNode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	p := env.portfolio(t, alice, "cv", true)

	_, err := env.dm.AssetManager.AssetAdd(ctx, bob, p.ID, AssetUpload{FileName: "a.txt", Body: strings.NewReader("a")})
	assert.ErrorIs(t, err, model.ErrPermission)

	_, err = env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{NodeID: "nope", FileName: "a.txt", Body: strings.NewReader("a")})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{FileName: " ", Body: strings.NewReader("a")})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestAssetList_HidesAssetsOfHiddenNodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	p := env.portfolio(t, alice, "cv", true)
	n := env.node(t, alice, p, "", "Secret")
	require.NoError(t, env.dm.NodeManager.NodeVisibility(ctx, alice, p.ID, n.ID, false))

	hidden, err := env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{NodeID: n.ID, FileName: "s.txt", Body: strings.NewReader("s")})
	require.NoError(t, err)
	_, err = env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{FileName: "p.txt", Body: strings.NewReader("p")})
	require.NoError(t, err)

	owner, err := env.dm.AssetManager.AssetList(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.Len(t, owner, 2)

	visitor, err := env.dm.AssetManager.AssetList(ctx, nil, p.ID)
	require.NoError(t, err)
	require.Len(t, visitor, 1)
	assert.Equal(t, "p.txt", visitor[0].FileName)

	_, err = env.dm.AssetManager.AssetGet(ctx, nil, p.ID, hidden.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAssetDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	p := env.portfolio(t, alice, "cv", false)
	asset, err := env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{FileName: "a.txt", Body: strings.NewReader("a")})
	require.NoError(t, err)

	require.NoError(t, env.dm.AssetManager.AssetDelete(ctx, alice, p.ID, asset.ID))
	_, err = env.blobs.Get(ctx, asset.StorageKey)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, env.dm.AssetManager.AssetDelete(ctx, alice, p.ID, asset.ID), model.ErrNotFound)
}

func TestNodeDelete_RemovesAttachedAssets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	p := env.portfolio(t, alice, "cv", false)
	parent := env.node(t, alice, p, "", "Parent")
	child := env.node(t, alice, p, parent.ID, "Child")

	attached, err := env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{NodeID: child.ID, FileName: "c.txt", Body: strings.NewReader("c")})
	require.NoError(t, err)
	_, err = env.dm.AssetManager.AssetAdd(ctx, alice, p.ID, AssetUpload{FileName: "keep.txt", Body: strings.NewReader("k")})
	require.NoError(t, err)

	_, err = env.dm.NodeManager.NodeDelete(ctx, alice, p.ID, parent.ID)
	require.NoError(t, err)
	env.dm.EventManager.Wait()

	list, err := env.dm.AssetManager.AssetList(ctx, alice, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep.txt", list[0].FileName)
	_, err = env.blobs.Get(ctx, attached.StorageKey)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
