package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

// handleAssetAdd uploads a local file into the selected portfolio, optionally attached to a node
func handleAssetAdd(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling asset add command", log.Fields{"args": cmd.Args})

	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	var nodeID string
	if len(cmd.Args) == 2 {
		if nodeID, err = resolveNode(ctx, s, portfolio, cmd.Args[1]); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(cmd.Args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", model.ErrInvalidInput, cmd.Args[0])
	}

	asset, err := s.DataManager.AssetManager.AssetAdd(ctx, s.User(), portfolio.ID, data.AssetUpload{
		NodeID:   nodeID,
		FileName: filepath.Base(cmd.Args[0]),
		Size:     info.Size(),
		Body:     f,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add asset: %w", err)
	}
	return asset, nil
}

// handleAssetList lists the assets of the selected portfolio
func handleAssetList(ctx context.Context, s *Session, _ model.Command) (interface{}, error) {
	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	assets, err := s.DataManager.AssetManager.AssetList(ctx, s.User(), portfolio.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// handleAssetGet downloads an asset into a local file
func handleAssetGet(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling asset get command", log.Fields{"args": cmd.Args})

	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	asset, body, err := s.DataManager.AssetManager.AssetOpen(ctx, s.User(), portfolio.ID, cmd.Args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open asset: %w", err)
	}
	defer body.Close()

	out, err := os.Create(cmd.Args[1])
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write asset: %w", err)
	}
	return fmt.Sprintf("Asset '%s' written to %s (%d bytes)", asset.FileName, cmd.Args[1], n), nil
}

// handleAssetDelete removes an asset and its stored bytes
func handleAssetDelete(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling asset delete command", log.Fields{"assetID": cmd.Args[0]})

	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	if err := s.DataManager.AssetManager.AssetDelete(ctx, s.User(), portfolio.ID, cmd.Args[0]); err != nil {
		return nil, fmt.Errorf("failed to delete asset: %w", err)
	}
	return "Asset deleted", nil
}
