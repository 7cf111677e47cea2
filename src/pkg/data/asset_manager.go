// Package data provides data management functionality for the Portfolio Tree application.
// This file contains operations related to uploaded assets.
package data

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"portfoliotree/app/src/pkg/event"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/storage"
)

// AssetOperations defines the interface for asset-related operations
type AssetOperations interface {
	AssetAdd(ctx context.Context, user *model.User, portfolioID int, upload AssetUpload) (*model.Asset, error)
	AssetGet(ctx context.Context, user *model.User, portfolioID int, assetID string) (*model.Asset, error)
	AssetOpen(ctx context.Context, user *model.User, portfolioID int, assetID string) (*model.Asset, io.ReadCloser, error)
	AssetList(ctx context.Context, user *model.User, portfolioID int) ([]*model.Asset, error)
	AssetDelete(ctx context.Context, user *model.User, portfolioID int, assetID string) error
}

// AssetUpload describes an incoming file. Size may be -1 when unknown.
type AssetUpload struct {
	NodeID      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AssetManager handles uploaded files: metadata rows in the AssetStore, bytes in the BlobStore.
type AssetManager struct {
	assetStore       storage.AssetStore
	nodeStore        storage.NodeStore
	blobStore        storage.BlobStore
	portfolioManager *PortfolioManager
	eventManager     *event.EventManager
	maxBytes         int64
	logger           *log.Logger
}

// NewAssetManager creates a new AssetManager instance. maxBytes <= 0 disables the size limit.
func NewAssetManager(assetStore storage.AssetStore, nodeStore storage.NodeStore, blobStore storage.BlobStore, portfolioManager *PortfolioManager, eventManager *event.EventManager, maxBytes int64, logger *log.Logger) (*AssetManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	if assetStore == nil || nodeStore == nil {
		return nil, fmt.Errorf("asset or node store not initialized")
	}
	if blobStore == nil {
		return nil, fmt.Errorf("blobStore not initialized")
	}
	if portfolioManager == nil || eventManager == nil {
		return nil, fmt.Errorf("portfolioManager or eventManager not initialized")
	}
	return &AssetManager{
		assetStore:       assetStore,
		nodeStore:        nodeStore,
		blobStore:        blobStore,
		portfolioManager: portfolioManager,
		eventManager:     eventManager,
		maxBytes:         maxBytes,
		logger:           logger,
	}, nil
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// AssetAdd stores an uploaded file and records its metadata. Uploads above the size limit are rejected.
func (am *AssetManager) AssetAdd(ctx context.Context, user *model.User, portfolioID int, upload AssetUpload) (*model.Asset, error) {
	portfolio, _, err := am.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionOwner)
	if err != nil {
		return nil, err
	}

	fileName := filepath.Base(strings.ReplaceAll(strings.TrimSpace(upload.FileName), `\`, "/"))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, fmt.Errorf("%w: missing file name", model.ErrInvalidInput)
	}
	if upload.Body == nil {
		return nil, fmt.Errorf("%w: missing file body", model.ErrInvalidInput)
	}
	if am.maxBytes > 0 && upload.Size > am.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", model.ErrInvalidInput, am.maxBytes)
	}
	if upload.NodeID != "" {
		nodes, err := am.nodeStore.NodeGet(ctx, portfolio, model.NodeInfo{ID: upload.NodeID}, model.NodeFilter{ID: true})
		if err != nil {
			return nil, fmt.Errorf("failed to look up node: %w", err)
		}
		if len(nodes) == 0 {
			return nil, fmt.Errorf("%w: node %s does not exist", model.ErrInvalidInput, upload.NodeID)
		}
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	am.logger.Info(ctx, "Adding asset", log.Fields{"portfolioID": portfolioID, "fileName": fileName, "size": upload.Size})

	key := storage.BlobKey(portfolio.ID, fileName)
	body := &countingReader{r: upload.Body}
	var reader io.Reader = body
	if am.maxBytes > 0 {
		// One byte past the limit is enough to detect an oversized body of unknown size.
		body.r = io.LimitReader(upload.Body, am.maxBytes+1)
	}
	if err := am.blobStore.Put(ctx, key, reader, upload.Size, contentType); err != nil {
		am.logger.Error(ctx, "Failed to store blob", log.Fields{"error": err, "key": key})
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}
	if am.maxBytes > 0 && body.n > am.maxBytes {
		am.deleteBlob(ctx, key)
		return nil, fmt.Errorf("%w: file exceeds %d bytes", model.ErrInvalidInput, am.maxBytes)
	}

	asset := &model.Asset{
		ID:          ulid.Make().String(),
		PortfolioID: portfolio.ID,
		NodeID:      upload.NodeID,
		FileName:    fileName,
		ContentType: contentType,
		Size:        body.n,
		StorageKey:  key,
		Created:     time.Now().UTC(),
	}
	if err := am.assetStore.AssetAdd(ctx, asset); err != nil {
		am.deleteBlob(ctx, key)
		return nil, fmt.Errorf("failed to add asset: %w", err)
	}

	am.logger.Info(ctx, "Asset added successfully", log.Fields{"portfolioID": portfolioID, "assetID": asset.ID})
	return asset, nil
}

// assetVisible loads an asset of the portfolio. Assets attached to hidden nodes are only visible to the owner.
func (am *AssetManager) assetVisible(ctx context.Context, portfolio *model.Portfolio, permission model.Permission, assetID string) (*model.Asset, error) {
	assets, err := am.assetStore.AssetGet(ctx, model.Asset{ID: assetID, PortfolioID: portfolio.ID}, model.AssetFilter{ID: true, PortfolioID: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("asset %s: %w", assetID, model.ErrNotFound)
	}
	asset := assets[0]
	if asset.NodeID != "" && permission < model.PermissionOwner {
		nodes, err := am.nodeStore.NodeGet(ctx, portfolio, model.NodeInfo{ID: asset.NodeID}, model.NodeFilter{ID: true})
		if err != nil {
			return nil, fmt.Errorf("failed to look up node: %w", err)
		}
		if len(nodes) == 1 && !nodes[0].IsVisible {
			return nil, fmt.Errorf("asset %s: %w", assetID, model.ErrNotFound)
		}
	}
	return asset, nil
}

// AssetGet returns the metadata of one asset.
func (am *AssetManager) AssetGet(ctx context.Context, user *model.User, portfolioID int, assetID string) (*model.Asset, error) {
	portfolio, permission, err := am.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionRead)
	if err != nil {
		return nil, err
	}
	return am.assetVisible(ctx, portfolio, permission, assetID)
}

// AssetOpen returns the metadata and the content of an asset. The caller closes the reader.
func (am *AssetManager) AssetOpen(ctx context.Context, user *model.User, portfolioID int, assetID string) (*model.Asset, io.ReadCloser, error) {
	asset, err := am.AssetGet(ctx, user, portfolioID, assetID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := am.blobStore.Get(ctx, asset.StorageKey)
	if err != nil {
		am.logger.Error(ctx, "Failed to open blob", log.Fields{"error": err, "assetID": assetID})
		return nil, nil, fmt.Errorf("failed to open asset %s: %w", assetID, err)
	}
	return asset, rc, nil
}

// AssetList returns the assets of a portfolio the user may see, oldest first.
func (am *AssetManager) AssetList(ctx context.Context, user *model.User, portfolioID int) ([]*model.Asset, error) {
	portfolio, permission, err := am.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionRead)
	if err != nil {
		return nil, err
	}
	assets, err := am.assetStore.AssetGet(ctx, model.Asset{PortfolioID: portfolio.ID}, model.AssetFilter{PortfolioID: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	if permission == model.PermissionOwner {
		return assets, nil
	}

	hidden, err := am.nodeStore.NodeGet(ctx, portfolio, model.NodeInfo{IsVisible: new(bool)}, model.NodeFilter{IsVisible: true})
	if err != nil {
		return nil, fmt.Errorf("failed to look up hidden nodes: %w", err)
	}
	hiddenIDs := make([]string, 0, len(hidden))
	for _, n := range hidden {
		hiddenIDs = append(hiddenIDs, n.ID)
	}
	return slices.DeleteFunc(assets, func(a *model.Asset) bool {
		return a.NodeID != "" && slices.Contains(hiddenIDs, a.NodeID)
	}), nil
}

// AssetDelete removes an asset row and its blob. Only the owner may delete.
func (am *AssetManager) AssetDelete(ctx context.Context, user *model.User, portfolioID int, assetID string) error {
	portfolio, _, err := am.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionOwner)
	if err != nil {
		return err
	}
	asset, err := am.assetVisible(ctx, portfolio, model.PermissionOwner, assetID)
	if err != nil {
		return err
	}
	if err := am.remove(ctx, asset); err != nil {
		return err
	}

	am.eventManager.Publish(ctx, event.Event{
		Type: event.AssetDeleted,
		Data: asset,
	})
	am.logger.Info(ctx, "Asset deleted successfully", log.Fields{"portfolioID": portfolioID, "assetID": assetID})
	return nil
}

func (am *AssetManager) remove(ctx context.Context, asset *model.Asset) error {
	if err := am.assetStore.AssetDelete(ctx, asset); err != nil {
		am.logger.Error(ctx, "Failed to delete asset", log.Fields{"error": err, "assetID": asset.ID})
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	am.deleteBlob(ctx, asset.StorageKey)
	return nil
}

// deleteBlob removes a blob. A blob left behind is only logged: the metadata row is already authoritative.
func (am *AssetManager) deleteBlob(ctx context.Context, key string) {
	if err := am.blobStore.Delete(ctx, key); err != nil {
		am.logger.Warn(ctx, "Failed to delete blob", log.Fields{"error": err, "key": key})
	}
}

// handlePortfolioDeleted removes the blobs of a deleted portfolio. The rows are already gone.
func (am *AssetManager) handlePortfolioDeleted(ctx context.Context, e event.Event) {
	data, ok := e.Data.(PortfolioDeletedData)
	if !ok {
		return
	}
	for _, key := range data.BlobKeys {
		am.deleteBlob(ctx, key)
	}
	am.logger.Debug(ctx, "Removed blobs of deleted portfolio", log.Fields{"portfolioID": data.Portfolio.ID, "count": len(data.BlobKeys)})
}

// handleNodeDeleted removes the assets attached to deleted nodes.
func (am *AssetManager) handleNodeDeleted(ctx context.Context, e event.Event) {
	data, ok := e.Data.(NodeDeletedData)
	if !ok {
		return
	}
	assets, err := am.assetStore.AssetGet(ctx, model.Asset{PortfolioID: data.Portfolio.ID}, model.AssetFilter{PortfolioID: true})
	if err != nil {
		am.logger.Error(ctx, "Failed to list assets of deleted nodes", log.Fields{"error": err, "portfolioID": data.Portfolio.ID})
		return
	}
	deleted := 0
	for _, asset := range assets {
		if asset.NodeID == "" || !slices.Contains(data.NodeIDs, asset.NodeID) {
			continue
		}
		if err := am.remove(ctx, asset); err == nil {
			deleted++
		}
	}
	am.logger.Debug(ctx, "Removed assets of deleted nodes", log.Fields{"portfolioID": data.Portfolio.ID, "count": deleted})
}
