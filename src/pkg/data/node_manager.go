// Package data provides data management functionality for the Portfolio Tree application.
// This file contains operations related to node management.
package data

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/oklog/ulid/v2"

	"portfoliotree/app/src/pkg/event"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/storage"
	"portfoliotree/app/src/pkg/tree"
)

// NodeOperations defines the interface for node-related operations
type NodeOperations interface {
	NodeAdd(ctx context.Context, user *model.User, portfolioID int, newNodeInfo model.NodeInfo) (*model.Node, error)
	NodeGet(ctx context.Context, user *model.User, portfolioID int, nodeID string) (*model.Node, error)
	NodeUpdate(ctx context.Context, user *model.User, portfolioID int, nodeID string, nodeUpdateInfo model.NodeInfo) (*model.Node, error)
	NodeMove(ctx context.Context, user *model.User, portfolioID int, nodeID, newParentID string, order *int) (*model.Node, error)
	NodeReorder(ctx context.Context, user *model.User, portfolioID int, parentID string, orderedIDs []string) error
	NodeVisibility(ctx context.Context, user *model.User, portfolioID int, nodeID string, visible bool) error
	NodeDelete(ctx context.Context, user *model.User, portfolioID int, nodeID string) ([]string, error)
	NodeFind(ctx context.Context, user *model.User, portfolioID int, query string) ([]*model.Node, error)
	NodeTree(ctx context.Context, user *model.User, portfolioID int) (*Tree, error)
	NodeView(ctx context.Context, user *model.User, portfolioID int, view string) (*View, error)
}

// NodeDeletedData is the payload of a NodeDeleted event
type NodeDeletedData struct {
	Portfolio *model.Portfolio
	NodeIDs   []string
}

// Tree is a materialized portfolio together with the viewer's permission.
type Tree struct {
	Portfolio  *model.Portfolio              `json:"portfolio"`
	Permission model.Permission              `json:"permission"`
	Roots      []*tree.TreeNode[*model.Node] `json:"roots"`
}

const (
	maxTitleLength = 200
	maxTags        = 32
)

// NodeManager handles all node-related operations.
type NodeManager struct {
	nodeStore        storage.NodeStore
	portfolioManager *PortfolioManager
	eventManager     *event.EventManager
	logger           *log.Logger
}

// NewNodeManager creates a new NodeManager instance.
func NewNodeManager(nodeStore storage.NodeStore, portfolioManager *PortfolioManager, eventManager *event.EventManager, logger *log.Logger) (*NodeManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	if nodeStore == nil {
		return nil, fmt.Errorf("nodeStore not initialized")
	}
	if portfolioManager == nil {
		return nil, fmt.Errorf("portfolioManager not initialized")
	}
	if eventManager == nil {
		return nil, fmt.Errorf("eventManager not initialized")
	}
	return &NodeManager{
		nodeStore:        nodeStore,
		portfolioManager: portfolioManager,
		eventManager:     eventManager,
		logger:           logger,
	}, nil
}

// normalizeNodeInfo trims and validates the display fields of a node.
func normalizeNodeInfo(info *model.NodeInfo) error {
	info.Title = strings.TrimSpace(info.Title)
	info.Type = strings.ToLower(strings.TrimSpace(info.Type))
	info.URL = strings.TrimSpace(info.URL)

	if info.Title == "" || len(info.Title) > maxTitleLength {
		return fmt.Errorf("%w: title must be 1 to %d characters", model.ErrInvalidInput, maxTitleLength)
	}
	if info.Type == "" {
		info.Type = model.NodeTypeCategory
	}
	if info.URL != "" {
		u, err := url.Parse(info.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: url must be an absolute http(s) address", model.ErrInvalidInput)
		}
	}

	tags := make([]string, 0, len(info.Tags))
	for _, tag := range info.Tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	if len(tags) > maxTags {
		return fmt.Errorf("%w: at most %d tags", model.ErrInvalidInput, maxTags)
	}
	info.Tags = tags
	return nil
}

// loadNodes returns every node of the portfolio plus an id index.
func (nm *NodeManager) loadNodes(ctx context.Context, portfolio *model.Portfolio) ([]*model.Node, map[string]*model.Node, error) {
	nodes, err := nm.nodeStore.NodeGet(ctx, portfolio, model.NodeInfo{}, model.NodeFilter{})
	if err != nil {
		nm.logger.Error(ctx, "Failed to load portfolio nodes", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return nil, nil, fmt.Errorf("failed to load portfolio nodes: %w", err)
	}
	byID := make(map[string]*model.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return nodes, byID, nil
}

// NodeAdd creates a node in the portfolio. Without an explicit order the node is appended after its siblings.
func (nm *NodeManager) NodeAdd(ctx context.Context, user *model.User, portfolioID int, newNodeInfo model.NodeInfo) (*model.Node, error) {
	portfolio, _, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionOwner)
	if err != nil {
		return nil, err
	}
	nm.logger.Info(ctx, "Adding new node", log.Fields{"portfolioID": portfolioID, "parentID": newNodeInfo.ParentID})

	if err := normalizeNodeInfo(&newNodeInfo); err != nil {
		return nil, err
	}

	if newNodeInfo.ParentID != "" {
		parents, err := nm.nodeStore.NodeGet(ctx, portfolio, model.NodeInfo{ID: newNodeInfo.ParentID}, model.NodeFilter{ID: true})
		if err != nil {
			return nil, fmt.Errorf("failed to look up parent node: %w", err)
		}
		if len(parents) == 0 {
			return nil, fmt.Errorf("%w: parent node %s does not exist", model.ErrInvalidInput, newNodeInfo.ParentID)
		}
	}

	order := 0
	if newNodeInfo.Order != nil {
		order = *newNodeInfo.Order
	} else {
		maxOrder, err := nm.nodeStore.NodeMaxOrder(ctx, portfolio, newNodeInfo.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute sibling order: %w", err)
		}
		order = maxOrder + 1
	}
	visible := true
	if newNodeInfo.IsVisible != nil {
		visible = *newNodeInfo.IsVisible
	}

	node := &model.Node{
		ID:          ulid.Make().String(),
		PortfolioID: portfolio.ID,
		ParentID:    newNodeInfo.ParentID,
		Type:        newNodeInfo.Type,
		Title:       newNodeInfo.Title,
		Description: newNodeInfo.Description,
		URL:         newNodeInfo.URL,
		Tags:        newNodeInfo.Tags,
		Order:       order,
		IsVisible:   visible,
		Content:     newNodeInfo.Content,
	}
	if node.Content == nil {
		node.Content = make(map[string]string)
	}

	if err := nm.nodeStore.NodeAdd(ctx, portfolio, node); err != nil {
		nm.logger.Error(ctx, "Failed to add node", log.Fields{"error": err, "portfolioID": portfolioID})
		return nil, fmt.Errorf("failed to add node: %w", err)
	}

	nm.logger.Info(ctx, "Node added successfully", log.Fields{"portfolioID": portfolioID, "nodeID": node.ID})
	return node, nil
}

// NodeGet returns a single node. Hidden nodes are only returned to the owner.
func (nm *NodeManager) NodeGet(ctx context.Context, user *model.User, portfolioID int, nodeID string) (*model.Node, error) {
	portfolio, permission, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionRead)
	if err != nil {
		return nil, err
	}
	return nm.nodeByID(ctx, portfolio, permission, nodeID)
}

func (nm *NodeManager) nodeByID(ctx context.Context, portfolio *model.Portfolio, permission model.Permission, nodeID string) (*model.Node, error) {
	nodes, err := nm.nodeStore.NodeGet(ctx, portfolio, model.NodeInfo{ID: nodeID}, model.NodeFilter{ID: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	if len(nodes) == 0 || (!nodes[0].IsVisible && permission < model.PermissionOwner) {
		return nil, fmt.Errorf("node %s: %w", nodeID, model.ErrNotFound)
	}
	return nodes[0], nil
}

// NodeUpdate replaces every writable field of a node. A nil Order or IsVisible keeps the current value.
// A changed ParentID is validated like NodeMove.
func (nm *NodeManager) NodeUpdate(ctx context.Context, user *model.User, portfolioID int, nodeID string, nodeUpdateInfo model.NodeInfo) (*model.Node, error) {
	portfolio, _, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionOwner)
	if err != nil {
		return nil, err
	}
	nm.logger.Info(ctx, "Updating node", log.Fields{"portfolioID": portfolioID, "nodeID": nodeID})

	if err := normalizeNodeInfo(&nodeUpdateInfo); err != nil {
		return nil, err
	}

	_, byID, err := nm.loadNodes(ctx, portfolio)
	if err != nil {
		return nil, err
	}
	node, ok := byID[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, model.ErrNotFound)
	}
	if nodeUpdateInfo.ParentID != node.ParentID {
		if err := checkMove(byID, nodeID, nodeUpdateInfo.ParentID); err != nil {
			return nil, err
		}
	}
	if nodeUpdateInfo.Order == nil {
		nodeUpdateInfo.Order = &node.Order
	}
	if nodeUpdateInfo.IsVisible == nil {
		nodeUpdateInfo.IsVisible = &node.IsVisible
	}
	if nodeUpdateInfo.Content == nil {
		nodeUpdateInfo.Content = make(map[string]string)
	}

	if err := nm.nodeStore.NodeUpdate(ctx, portfolio, node, nodeUpdateInfo, model.NodeFilterAll); err != nil {
		nm.logger.Error(ctx, "Failed to update node", log.Fields{"error": err, "nodeID": nodeID})
		return nil, fmt.Errorf("failed to update node: %w", err)
	}

	return nm.nodeByID(ctx, portfolio, model.PermissionOwner, nodeID)
}

// checkMove rejects parents that are missing, the node itself, or one of its descendants.
func checkMove(byID map[string]*model.Node, nodeID, newParentID string) error {
	if newParentID == "" {
		return nil
	}
	if newParentID == nodeID {
		return fmt.Errorf("%w: a node cannot be its own parent", model.ErrInvalidInput)
	}
	if _, ok := byID[newParentID]; !ok {
		return fmt.Errorf("%w: parent node %s does not exist", model.ErrInvalidInput, newParentID)
	}

	// Walk up from the new parent; reaching nodeID means the move would close a cycle.
	seen := make(map[string]bool)
	for id := newParentID; id != ""; {
		if id == nodeID {
			return fmt.Errorf("%w: cannot move a node under its own descendant", model.ErrInvalidInput)
		}
		if seen[id] {
			break
		}
		seen[id] = true
		parent, ok := byID[id]
		if !ok {
			break
		}
		id = parent.ParentID
	}
	return nil
}

// NodeMove attaches a node to a new parent ("" for root). Without an explicit order it goes last.
func (nm *NodeManager) NodeMove(ctx context.Context, user *model.User, portfolioID int, nodeID, newParentID string, order *int) (*model.Node, error) {
	portfolio, _, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionOwner)
	if err != nil {
		return nil, err
	}
	nm.logger.Info(ctx, "Moving node", log.Fields{"portfolioID": portfolioID, "nodeID": nodeID, "newParentID": newParentID})

	_, byID, err := nm.loadNodes(ctx, portfolio)
	if err != nil {
		return nil, err
	}
	node, ok := byID[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, model.ErrNotFound)
	}
	if err := checkMove(byID, nodeID, newParentID); err != nil {
		return nil, err
	}

	if order == nil {
		maxOrder, err := nm.nodeStore.NodeMaxOrder(ctx, portfolio, newParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute sibling order: %w", err)
		}
		next := maxOrder + 1
		order = &next
	}

	err = nm.nodeStore.NodeUpdate(ctx, portfolio, node,
		model.NodeInfo{ParentID: newParentID, Order: order},
		model.NodeFilter{ParentID: true, Order: true})
	if err != nil {
		nm.logger.Error(ctx, "Failed to move node", log.Fields{"error": err, "nodeID": nodeID})
		return nil, fmt.Errorf("failed to move node: %w", err)
	}
	return nm.nodeByID(ctx, portfolio, model.PermissionOwner, nodeID)
}

// NodeReorder sets the sibling order of every child of parentID to its index in orderedIDs.
// orderedIDs must list each child exactly once.
func (nm *NodeManager) NodeReorder(ctx context.Context, user *model.User, portfolioID int, parentID string, orderedIDs []string) error {
	portfolio, _, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionOwner)
	if err != nil {
		return err
	}

	children, err := nm.nodeStore.NodeGet(ctx, portfolio, model.NodeInfo{ParentID: parentID}, model.NodeFilter{ParentID: true})
	if err != nil {
		return fmt.Errorf("failed to get children: %w", err)
	}
	if len(children) != len(orderedIDs) {
		return fmt.Errorf("%w: expected %d children, got %d", model.ErrInvalidInput, len(children), len(orderedIDs))
	}
	pending := make(map[string]bool, len(children))
	for _, c := range children {
		pending[c.ID] = true
	}
	for _, id := range orderedIDs {
		if !pending[id] {
			return fmt.Errorf("%w: %s is not a child of %q or is listed twice", model.ErrInvalidInput, id, parentID)
		}
		delete(pending, id)
	}

	if err := nm.nodeStore.NodeReorder(ctx, portfolio, orderedIDs); err != nil {
		nm.logger.Error(ctx, "Failed to reorder nodes", log.Fields{"error": err, "portfolioID": portfolioID})
		return fmt.Errorf("failed to reorder nodes: %w", err)
	}
	return nil
}

// NodeVisibility shows or hides a single node. Descendants keep their own flag.
func (nm *NodeManager) NodeVisibility(ctx context.Context, user *model.User, portfolioID int, nodeID string, visible bool) error {
	portfolio, _, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionOwner)
	if err != nil {
		return err
	}
	node, err := nm.nodeByID(ctx, portfolio, model.PermissionOwner, nodeID)
	if err != nil {
		return err
	}
	err = nm.nodeStore.NodeUpdate(ctx, portfolio, node, model.NodeInfo{IsVisible: &visible}, model.NodeFilter{IsVisible: true})
	if err != nil {
		return fmt.Errorf("failed to update node visibility: %w", err)
	}
	return nil
}

// descendants returns rootID followed by every node below it, breadth first.
func descendants(nodes []*model.Node, rootID string) []string {
	children := make(map[string][]string)
	for _, n := range nodes {
		if n.ParentID != "" && n.ParentID != n.ID {
			children[n.ParentID] = append(children[n.ParentID], n.ID)
		}
	}
	ids := []string{rootID}
	seen := map[string]bool{rootID: true}
	for i := 0; i < len(ids); i++ {
		for _, child := range children[ids[i]] {
			if !seen[child] {
				seen[child] = true
				ids = append(ids, child)
			}
		}
	}
	return ids
}

// NodeDelete removes a node and its whole subtree. It returns the removed ids.
func (nm *NodeManager) NodeDelete(ctx context.Context, user *model.User, portfolioID int, nodeID string) ([]string, error) {
	portfolio, _, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionOwner)
	if err != nil {
		return nil, err
	}
	nm.logger.Info(ctx, "Deleting node", log.Fields{"portfolioID": portfolioID, "nodeID": nodeID})

	nodes, byID, err := nm.loadNodes(ctx, portfolio)
	if err != nil {
		return nil, err
	}
	if _, ok := byID[nodeID]; !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, model.ErrNotFound)
	}

	ids := descendants(nodes, nodeID)
	if err := nm.nodeStore.NodeDelete(ctx, portfolio, ids); err != nil {
		nm.logger.Error(ctx, "Failed to delete node", log.Fields{"error": err, "nodeID": nodeID})
		return nil, fmt.Errorf("failed to delete node: %w", err)
	}

	nm.eventManager.Publish(ctx, event.Event{
		Type: event.NodeDeleted,
		Data: NodeDeletedData{Portfolio: portfolio, NodeIDs: ids},
	})

	nm.logger.Info(ctx, "Node deleted successfully", log.Fields{"portfolioID": portfolioID, "nodeID": nodeID, "count": len(ids)})
	return ids, nil
}

// NodeFind fuzzy-matches query against title, tags and description of the nodes the user may see.
// Closest matches come first.
func (nm *NodeManager) NodeFind(ctx context.Context, user *model.User, portfolioID int, query string) ([]*model.Node, error) {
	portfolio, permission, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionRead)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", model.ErrInvalidInput)
	}

	nodes, _, err := nm.loadNodes(ctx, portfolio)
	if err != nil {
		return nil, err
	}

	var candidates []*model.Node
	var keys []string
	for _, n := range nodes {
		if !n.IsVisible && permission < model.PermissionOwner {
			continue
		}
		candidates = append(candidates, n)
		keys = append(keys, n.Title+" "+strings.Join(n.Tags, " ")+" "+n.Description)
	}

	ranks := fuzzy.RankFindNormalizedFold(query, keys)
	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int {
		if a.Distance != b.Distance {
			return a.Distance - b.Distance
		}
		return a.OriginalIndex - b.OriginalIndex
	})

	found := make([]*model.Node, 0, len(ranks))
	for _, r := range ranks {
		found = append(found, candidates[r.OriginalIndex])
	}
	nm.logger.Debug(ctx, "Node search finished", log.Fields{"portfolioID": portfolioID, "query": query, "hits": len(found)})
	return found, nil
}

// NodeTree materializes the portfolio. Hidden nodes are included only for the owner.
func (nm *NodeManager) NodeTree(ctx context.Context, user *model.User, portfolioID int) (*Tree, error) {
	portfolio, permission, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionRead)
	if err != nil {
		return nil, err
	}
	nodes, _, err := nm.loadNodes(ctx, portfolio)
	if err != nil {
		return nil, err
	}
	return &Tree{
		Portfolio:  portfolio,
		Permission: permission,
		Roots:      tree.Materialize(nodes, permission == model.PermissionOwner),
	}, nil
}

// NodeImport stores nodes read from an export document under fresh ids.
// Parent references are rewritten to the new ids; parents missing from the document stay dangling.
// A node without a document id is stored but cannot be referenced as a parent, and an empty
// parent id always stays a root.
func (nm *NodeManager) NodeImport(ctx context.Context, portfolio *model.Portfolio, nodes []*model.Node) error {
	newIDs := make(map[string]string, len(nodes))
	for _, n := range nodes {
		newID := ulid.Make().String()
		if n.ID != "" {
			newIDs[n.ID] = newID
		}
		n.ID = newID
	}
	for _, n := range nodes {
		if n.Type == "" {
			n.Type = model.NodeTypeCategory
		}
		if n.ParentID == "" {
			continue
		}
		if id, ok := newIDs[n.ParentID]; ok {
			n.ParentID = id
		}
	}
	if err := nm.nodeStore.NodeAdd(ctx, portfolio, nodes...); err != nil {
		return fmt.Errorf("failed to import nodes: %w", err)
	}
	return nil
}

// NodeAll returns every node of a portfolio the caller owns, unordered.
func (nm *NodeManager) NodeAll(ctx context.Context, user *model.User, portfolioID int) (*model.Portfolio, []*model.Node, error) {
	portfolio, _, err := nm.portfolioManager.PortfolioAccess(ctx, user, portfolioID, model.PermissionOwner)
	if err != nil {
		return nil, nil, err
	}
	nodes, _, err := nm.loadNodes(ctx, portfolio)
	if err != nil {
		return nil, nil, err
	}
	return portfolio, nodes, nil
}
