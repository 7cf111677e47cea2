package storage

import (
	"context"
	"fmt"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

// AssetStore defines the interface for asset metadata storage operations.
type AssetStore interface {
	AssetAdd(ctx context.Context, asset *model.Asset) error
	AssetGet(ctx context.Context, assetInfo model.Asset, assetFilter model.AssetFilter) ([]*model.Asset, error)
	AssetDelete(ctx context.Context, asset *model.Asset) error
}

// AssetStorage implements the AssetStore interface.
type AssetStorage struct {
	storage *Storage
	logger  *log.Logger
}

// NewAssetStorage creates a new AssetStorage instance.
func NewAssetStorage(storage *Storage) *AssetStorage {
	return &AssetStorage{
		storage: storage,
		logger:  storage.logger,
	}
}

// AssetAdd records the metadata of an uploaded blob.
func (s *AssetStorage) AssetAdd(ctx context.Context, asset *model.Asset) error {
	_, err := s.storage.GetDatabase().ExecContext(ctx,
		"INSERT INTO assets (id, portfolio_id, node_id, file_name, content_type, size, storage_key, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		asset.ID, asset.PortfolioID, asset.NodeID, asset.FileName, asset.ContentType, asset.Size, asset.StorageKey, asset.Created,
	)
	if err != nil {
		s.logger.Error(ctx, "Failed to add asset", log.Fields{"error": err, "portfolioID": asset.PortfolioID})
		return fmt.Errorf("failed to add asset: %w", err)
	}
	return nil
}

// AssetGet retrieves assets based on the provided info and filter.
func (s *AssetStorage) AssetGet(ctx context.Context, assetInfo model.Asset, assetFilter model.AssetFilter) ([]*model.Asset, error) {
	query := "SELECT id, portfolio_id, node_id, file_name, content_type, size, storage_key, created FROM assets WHERE 1=1"
	var args []interface{}

	if assetFilter.ID {
		query += " AND id = ?"
		args = append(args, assetInfo.ID)
	}
	if assetFilter.PortfolioID {
		query += " AND portfolio_id = ?"
		args = append(args, assetInfo.PortfolioID)
	}
	if assetFilter.NodeID {
		query += " AND node_id = ?"
		args = append(args, assetInfo.NodeID)
	}
	query += " ORDER BY created, id"

	rows, err := s.storage.GetDatabase().QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error(ctx, "Failed to query assets", log.Fields{"error": err})
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []*model.Asset
	for rows.Next() {
		var a model.Asset
		if err := rows.Scan(&a.ID, &a.PortfolioID, &a.NodeID, &a.FileName, &a.ContentType, &a.Size, &a.StorageKey, &a.Created); err != nil {
			s.logger.Error(ctx, "Failed to scan asset row", log.Fields{"error": err})
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		assets = append(assets, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset rows: %w", err)
	}
	return assets, nil
}

// AssetDelete removes the metadata row of an asset. The blob is removed by the caller.
func (s *AssetStorage) AssetDelete(ctx context.Context, asset *model.Asset) error {
	_, err := s.storage.GetDatabase().ExecContext(ctx, "DELETE FROM assets WHERE id = ?", asset.ID)
	if err != nil {
		s.logger.Error(ctx, "Failed to delete asset", log.Fields{"error": err, "assetID": asset.ID})
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}
