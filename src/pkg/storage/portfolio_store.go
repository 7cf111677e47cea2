package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

// PortfolioStore defines the interface for portfolio-related storage operations.
type PortfolioStore interface {
	PortfolioAdd(ctx context.Context, user *model.User, newPortfolioInfo model.PortfolioInfo) (int, error)
	PortfolioGet(ctx context.Context, portfolioInfo model.PortfolioInfo, portfolioFilter model.PortfolioFilter) ([]*model.Portfolio, error)
	PortfolioAccessible(ctx context.Context, username string) ([]*model.Portfolio, error)
	PortfolioUpdate(ctx context.Context, portfolio *model.Portfolio, portfolioUpdateInfo model.PortfolioInfo, portfolioFilter model.PortfolioFilter) error
	PortfolioDelete(ctx context.Context, portfolio *model.Portfolio) ([]string, error)
}

// PortfolioStorage implements the PortfolioStore interface.
type PortfolioStorage struct {
	storage *Storage
	logger  *log.Logger
}

// NewPortfolioStorage creates a new PortfolioStorage instance.
func NewPortfolioStorage(storage *Storage) *PortfolioStorage {
	return &PortfolioStorage{
		storage: storage,
		logger:  storage.logger,
	}
}

const portfolioColumns = "id, portfolio_name, owner, description, is_public, created, updated"

// PortfolioAdd adds a new portfolio owned by user to the database.
func (s *PortfolioStorage) PortfolioAdd(ctx context.Context, user *model.User, newPortfolio model.PortfolioInfo) (int, error) {
	s.logger.Info(ctx, "Adding new portfolio", log.Fields{"username": user.Username, "portfolioName": newPortfolio.Name})

	db := s.storage.GetDatabase()
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		"INSERT INTO portfolios (portfolio_name, owner, description, is_public, created, updated) VALUES (?, ?, ?, ?, ?, ?)",
		newPortfolio.Name, user.Username, newPortfolio.Description, newPortfolio.IsPublic, now, now,
	)
	if err != nil {
		s.logger.Error(ctx, "Failed to add portfolio", log.Fields{"error": err, "username": user.Username, "portfolioName": newPortfolio.Name})
		return 0, fmt.Errorf("failed to add portfolio: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.Error(ctx, "Failed to get last insert ID", log.Fields{"error": err})
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	s.logger.Info(ctx, "Portfolio added successfully", log.Fields{"portfolioID": id, "username": user.Username})
	return int(id), nil
}

// PortfolioGet retrieves portfolios based on the provided info and filter.
func (s *PortfolioStorage) PortfolioGet(ctx context.Context, portfolioInfo model.PortfolioInfo, portfolioFilter model.PortfolioFilter) ([]*model.Portfolio, error) {
	query := "SELECT " + portfolioColumns + " FROM portfolios WHERE 1=1"
	var args []interface{}

	if portfolioFilter.ID {
		query += " AND id = ?"
		args = append(args, portfolioInfo.ID)
	}
	if portfolioFilter.Name {
		query += " AND portfolio_name = ?"
		args = append(args, portfolioInfo.Name)
	}
	if portfolioFilter.Owner {
		query += " AND owner = ?"
		args = append(args, portfolioInfo.Owner)
	}
	if portfolioFilter.Description {
		query += " AND description = ?"
		args = append(args, portfolioInfo.Description)
	}
	if portfolioFilter.IsPublic {
		query += " AND is_public = ?"
		args = append(args, portfolioInfo.IsPublic)
	}
	query += " ORDER BY id"

	return s.query(ctx, query, args...)
}

// PortfolioAccessible lists the portfolios username owns plus every public portfolio.
func (s *PortfolioStorage) PortfolioAccessible(ctx context.Context, username string) ([]*model.Portfolio, error) {
	return s.query(ctx, "SELECT "+portfolioColumns+" FROM portfolios WHERE owner = ? OR is_public = ? ORDER BY id", username, true)
}

func (s *PortfolioStorage) query(ctx context.Context, query string, args ...interface{}) ([]*model.Portfolio, error) {
	rows, err := s.storage.GetDatabase().QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error(ctx, "Failed to query portfolios", log.Fields{"error": err})
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*model.Portfolio
	for rows.Next() {
		var p model.Portfolio
		if err := rows.Scan(&p.ID, &p.Name, &p.Owner, &p.Description, &p.IsPublic, &p.Created, &p.Updated); err != nil {
			s.logger.Error(ctx, "Failed to scan portfolio row", log.Fields{"error": err})
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}
		portfolios = append(portfolios, &p)
	}

	if err := rows.Err(); err != nil {
		s.logger.Error(ctx, "Error iterating portfolio rows", log.Fields{"error": err})
		return nil, fmt.Errorf("error iterating portfolio rows: %w", err)
	}
	return portfolios, nil
}

// PortfolioUpdate updates an existing portfolio in the database.
func (s *PortfolioStorage) PortfolioUpdate(ctx context.Context, portfolio *model.Portfolio, portfolioUpdateInfo model.PortfolioInfo, portfolioFilter model.PortfolioFilter) error {
	s.logger.Info(ctx, "Updating portfolio", log.Fields{"portfolioID": portfolio.ID, "filter": portfolioFilter})

	updates := []string{"updated = ?"}
	args := []interface{}{time.Now().UTC()}

	if portfolioFilter.Name {
		updates = append(updates, "portfolio_name = ?")
		args = append(args, portfolioUpdateInfo.Name)
	}
	if portfolioFilter.Owner {
		updates = append(updates, "owner = ?")
		args = append(args, portfolioUpdateInfo.Owner)
	}
	if portfolioFilter.Description {
		updates = append(updates, "description = ?")
		args = append(args, portfolioUpdateInfo.Description)
	}
	if portfolioFilter.IsPublic {
		updates = append(updates, "is_public = ?")
		args = append(args, portfolioUpdateInfo.IsPublic)
	}
	args = append(args, portfolio.ID)

	_, err := s.storage.GetDatabase().ExecContext(ctx, "UPDATE portfolios SET "+strings.Join(updates, ", ")+" WHERE id = ?", args...)
	if err != nil {
		s.logger.Error(ctx, "Error updating portfolio", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	return nil
}

// PortfolioDelete removes a portfolio together with its nodes, content and asset rows.
// It returns the storage keys of the removed assets so that their blobs can be cleaned up.
func (s *PortfolioStorage) PortfolioDelete(ctx context.Context, portfolio *model.Portfolio) ([]string, error) {
	s.logger.Info(ctx, "Deleting portfolio", log.Fields{"portfolioID": portfolio.ID})

	var keys []string
	err := s.storage.GetDatabase().Tx(ctx, func(q Querier) error {
		rows, err := q.QueryContext(ctx, "SELECT storage_key FROM assets WHERE portfolio_id = ?", portfolio.ID)
		if err != nil {
			return fmt.Errorf("failed to query portfolio assets: %w", err)
		}
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan asset key: %w", err)
			}
			keys = append(keys, key)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating asset keys: %w", err)
		}

		// node_content cascades from nodes
		if _, err := q.ExecContext(ctx, "DELETE FROM nodes WHERE portfolio_id = ?", portfolio.ID); err != nil {
			return fmt.Errorf("failed to delete portfolio nodes: %w", err)
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM assets WHERE portfolio_id = ?", portfolio.ID); err != nil {
			return fmt.Errorf("failed to delete portfolio assets: %w", err)
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM portfolios WHERE id = ?", portfolio.ID); err != nil {
			return fmt.Errorf("failed to delete portfolio: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to delete portfolio", log.Fields{"portfolioID": portfolio.ID, "error": err})
		return nil, err
	}

	s.logger.Info(ctx, "Portfolio deleted successfully from storage", log.Fields{"portfolioID": portfolio.ID, "assets": len(keys)})
	return keys, nil
}
