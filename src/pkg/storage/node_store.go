package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

// NodeStore defines the interface for node-related storage operations.
type NodeStore interface {
	NodeAdd(ctx context.Context, portfolio *model.Portfolio, nodes ...*model.Node) error
	NodeGet(ctx context.Context, portfolio *model.Portfolio, nodeInfo model.NodeInfo, nodeFilter model.NodeFilter) ([]*model.Node, error)
	NodeUpdate(ctx context.Context, portfolio *model.Portfolio, node *model.Node, nodeUpdateInfo model.NodeInfo, nodeUpdateFilter model.NodeFilter) error
	NodeReorder(ctx context.Context, portfolio *model.Portfolio, ids []string) error
	NodeDelete(ctx context.Context, portfolio *model.Portfolio, ids []string) error
	NodeMaxOrder(ctx context.Context, portfolio *model.Portfolio, parentID string) (int, error)
}

// NodeStorage implements the NodeStore interface.
type NodeStorage struct {
	storage *Storage
	logger  *log.Logger
}

// NewNodeStorage creates a new NodeStorage instance.
func NewNodeStorage(storage *Storage) *NodeStorage {
	return &NodeStorage{
		storage: storage,
		logger:  storage.logger,
	}
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}

func decodeTags(raw string) ([]string, error) {
	var tags []string
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}

// NodeAdd inserts fully formed nodes (ids assigned by the caller) in one transaction.
// Created and Updated are set when zero.
func (s *NodeStorage) NodeAdd(ctx context.Context, portfolio *model.Portfolio, nodes ...*model.Node) error {
	s.logger.Info(ctx, "Adding nodes", log.Fields{"portfolioID": portfolio.ID, "count": len(nodes)})

	now := time.Now().UTC()
	err := s.storage.GetDatabase().Tx(ctx, func(q Querier) error {
		for _, n := range nodes {
			if n.Created.IsZero() {
				n.Created = now
			}
			if n.Updated.IsZero() {
				n.Updated = now
			}
			n.PortfolioID = portfolio.ID

			tags, err := encodeTags(n.Tags)
			if err != nil {
				return err
			}
			_, err = q.ExecContext(ctx,
				"INSERT INTO nodes (id, portfolio_id, parent_id, node_type, title, description, url, tags, sort_order, is_visible, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				n.ID, portfolio.ID, n.ParentID, n.Type, n.Title, n.Description, n.URL, tags, n.Order, n.IsVisible, n.Created, n.Updated,
			)
			if err != nil {
				return fmt.Errorf("failed to add node %s: %w", n.ID, err)
			}
			if err := insertContent(ctx, q, n.ID, n.Content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to add nodes", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return err
	}

	s.logger.Info(ctx, "Nodes added successfully", log.Fields{"portfolioID": portfolio.ID, "count": len(nodes)})
	return nil
}

func insertContent(ctx context.Context, q Querier, nodeID string, content map[string]string) error {
	for key, value := range content {
		if _, err := q.ExecContext(ctx, "INSERT INTO node_content (node_id, key, value) VALUES (?, ?, ?)", nodeID, key, value); err != nil {
			return fmt.Errorf("failed to add node content: %w", err)
		}
	}
	return nil
}

// NodeGet retrieves nodes of a portfolio based on the provided info and filter.
// Rows come back in insertion order; tree ordering is left to the materializer.
func (s *NodeStorage) NodeGet(ctx context.Context, portfolio *model.Portfolio, nodeInfo model.NodeInfo, nodeFilter model.NodeFilter) ([]*model.Node, error) {
	s.logger.Debug(ctx, "Retrieving nodes", log.Fields{"portfolioID": portfolio.ID, "filter": nodeFilter})

	db := s.storage.GetDatabase()
	query := "SELECT id, parent_id, node_type, title, description, url, tags, sort_order, is_visible, created, updated FROM nodes WHERE portfolio_id = ?"
	args := []interface{}{portfolio.ID}

	// Create fetch query based on node filter
	if nodeFilter.ID {
		query += " AND id = ?"
		args = append(args, nodeInfo.ID)
	}
	if nodeFilter.ParentID {
		query += " AND parent_id = ?"
		args = append(args, nodeInfo.ParentID)
	}
	if nodeFilter.Type {
		query += " AND node_type = ?"
		args = append(args, nodeInfo.Type)
	}
	if nodeFilter.Title {
		query += " AND title = ?"
		args = append(args, nodeInfo.Title)
	}
	if nodeFilter.IsVisible && nodeInfo.IsVisible != nil {
		query += " AND is_visible = ?"
		args = append(args, *nodeInfo.IsVisible)
	}
	query += " ORDER BY rowid"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error(ctx, "Failed to query nodes", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*model.Node
	byID := make(map[string]*model.Node)
	for rows.Next() {
		var n model.Node
		var tags string
		err := rows.Scan(&n.ID, &n.ParentID, &n.Type, &n.Title, &n.Description, &n.URL, &tags, &n.Order, &n.IsVisible, &n.Created, &n.Updated)
		if err != nil {
			s.logger.Error(ctx, "Failed to scan node row", log.Fields{"error": err})
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		if n.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		n.PortfolioID = portfolio.ID
		n.Content = make(map[string]string)
		nodes = append(nodes, &n)
		byID[n.ID] = &n
	}
	if err := rows.Err(); err != nil {
		s.logger.Error(ctx, "Error iterating node rows", log.Fields{"error": err})
		return nil, fmt.Errorf("error iterating node rows: %w", err)
	}
	if len(nodes) == 0 {
		return nodes, nil
	}

	// Load the content of the whole portfolio in one query and attach what matches
	contentRows, err := db.QueryContext(ctx,
		"SELECT c.node_id, c.key, c.value FROM node_content c JOIN nodes n ON n.id = c.node_id WHERE n.portfolio_id = ?",
		portfolio.ID,
	)
	if err != nil {
		s.logger.Error(ctx, "Failed to query node content", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return nil, fmt.Errorf("failed to query node content: %w", err)
	}
	defer contentRows.Close()

	for contentRows.Next() {
		var nodeID, key, value string
		if err := contentRows.Scan(&nodeID, &key, &value); err != nil {
			s.logger.Error(ctx, "Failed to scan content row", log.Fields{"error": err})
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		if n, ok := byID[nodeID]; ok {
			n.Content[key] = value
		}
	}
	if err := contentRows.Err(); err != nil {
		s.logger.Error(ctx, "Error iterating content rows", log.Fields{"error": err})
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}

	return nodes, nil
}

// NodeUpdate updates the fields of node selected by nodeUpdateFilter.
func (s *NodeStorage) NodeUpdate(ctx context.Context, portfolio *model.Portfolio, node *model.Node, nodeUpdateInfo model.NodeInfo, nodeUpdateFilter model.NodeFilter) error {
	s.logger.Info(ctx, "Updating node", log.Fields{"portfolioID": portfolio.ID, "nodeID": node.ID, "filter": nodeUpdateFilter})

	updates := []string{"updated = ?"}
	args := []interface{}{time.Now().UTC()}

	if nodeUpdateFilter.ParentID {
		updates = append(updates, "parent_id = ?")
		args = append(args, nodeUpdateInfo.ParentID)
	}
	if nodeUpdateFilter.Type {
		updates = append(updates, "node_type = ?")
		args = append(args, nodeUpdateInfo.Type)
	}
	if nodeUpdateFilter.Title {
		updates = append(updates, "title = ?")
		args = append(args, nodeUpdateInfo.Title)
	}
	if nodeUpdateFilter.Description {
		updates = append(updates, "description = ?")
		args = append(args, nodeUpdateInfo.Description)
	}
	if nodeUpdateFilter.URL {
		updates = append(updates, "url = ?")
		args = append(args, nodeUpdateInfo.URL)
	}
	if nodeUpdateFilter.Tags {
		tags, err := encodeTags(nodeUpdateInfo.Tags)
		if err != nil {
			return err
		}
		updates = append(updates, "tags = ?")
		args = append(args, tags)
	}
	if nodeUpdateFilter.Order && nodeUpdateInfo.Order != nil {
		updates = append(updates, "sort_order = ?")
		args = append(args, *nodeUpdateInfo.Order)
	}
	if nodeUpdateFilter.IsVisible && nodeUpdateInfo.IsVisible != nil {
		updates = append(updates, "is_visible = ?")
		args = append(args, *nodeUpdateInfo.IsVisible)
	}
	args = append(args, node.ID, portfolio.ID)

	err := s.storage.GetDatabase().Tx(ctx, func(q Querier) error {
		query := "UPDATE nodes SET " + strings.Join(updates, ", ") + " WHERE id = ? AND portfolio_id = ?"
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update node: %w", err)
		}

		// Content is replaced as a whole
		if nodeUpdateFilter.Content {
			if _, err := q.ExecContext(ctx, "DELETE FROM node_content WHERE node_id = ?", node.ID); err != nil {
				return fmt.Errorf("failed to delete existing node content: %w", err)
			}
			if err := insertContent(ctx, q, node.ID, nodeUpdateInfo.Content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to update node", log.Fields{"error": err, "portfolioID": portfolio.ID, "nodeID": node.ID})
		return err
	}

	s.logger.Info(ctx, "Node updated successfully", log.Fields{"portfolioID": portfolio.ID, "nodeID": node.ID})
	return nil
}

// NodeReorder sets sort_order to the position of each id in ids.
func (s *NodeStorage) NodeReorder(ctx context.Context, portfolio *model.Portfolio, ids []string) error {
	now := time.Now().UTC()
	err := s.storage.GetDatabase().Tx(ctx, func(q Querier) error {
		for i, id := range ids {
			_, err := q.ExecContext(ctx, "UPDATE nodes SET sort_order = ?, updated = ? WHERE id = ? AND portfolio_id = ?", i, now, id, portfolio.ID)
			if err != nil {
				return fmt.Errorf("failed to reorder node %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to reorder nodes", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return err
	}
	return nil
}

// NodeDelete removes the given nodes and their content in one transaction.
func (s *NodeStorage) NodeDelete(ctx context.Context, portfolio *model.Portfolio, ids []string) error {
	s.logger.Info(ctx, "Deleting nodes", log.Fields{"portfolioID": portfolio.ID, "nodeIDs": ids})

	err := s.storage.GetDatabase().Tx(ctx, func(q Querier) error {
		for _, id := range ids {
			if _, err := q.ExecContext(ctx, "DELETE FROM node_content WHERE node_id = ?", id); err != nil {
				return fmt.Errorf("failed to delete node content: %w", err)
			}
			if _, err := q.ExecContext(ctx, "DELETE FROM nodes WHERE id = ? AND portfolio_id = ?", id, portfolio.ID); err != nil {
				return fmt.Errorf("failed to delete node: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to delete nodes", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return err
	}

	s.logger.Info(ctx, "Nodes deleted successfully", log.Fields{"portfolioID": portfolio.ID, "count": len(ids)})
	return nil
}

// NodeMaxOrder returns the largest sort_order among the children of parentID, or -1 if it has none.
func (s *NodeStorage) NodeMaxOrder(ctx context.Context, portfolio *model.Portfolio, parentID string) (int, error) {
	var maxOrder int
	err := s.storage.GetDatabase().QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sort_order), -1) FROM nodes WHERE portfolio_id = ? AND parent_id = ?",
		portfolio.ID, parentID,
	).Scan(&maxOrder)
	if err != nil {
		s.logger.Error(ctx, "Failed to query max sibling order", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return 0, fmt.Errorf("failed to query max sibling order: %w", err)
	}
	return maxOrder, nil
}
