// Package model defines the data structures used throughout the Portfolio Tree application.
package model

import "time"

// Common node types. The type field is free text; these are the ones the UI knows about.
const (
	NodeTypeCategory   = "category"
	NodeTypeProject    = "project"
	NodeTypeSkill      = "skill"
	NodeTypeExperience = "experience"
	NodeTypeEducation  = "education"
)

// Node represents a single portfolio entry. A node with an empty ParentID is a root.
type Node struct {
	ID          string            `json:"id"`
	PortfolioID int               `json:"portfolio_id"`
	ParentID    string            `json:"parent_id,omitempty"`
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	URL         string            `json:"url,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Order       int               `json:"order"`
	IsVisible   bool              `json:"is_visible"`
	Content     map[string]string `json:"content,omitempty"`
	Created     time.Time         `json:"created"`
	Updated     time.Time         `json:"updated"`
}

// NodeID returns the node identifier.
func (n *Node) NodeID() string { return n.ID }

// NodeParentID returns the parent identifier, empty for roots.
func (n *Node) NodeParentID() string { return n.ParentID }

// NodeOrder returns the sibling order.
func (n *Node) NodeOrder() int { return n.Order }

// NodeVisible reports whether the node is shown to non-owners.
func (n *Node) NodeVisible() bool { return n.IsVisible }

// NodeInfo contains the writable fields of a node.
// Order and IsVisible are pointers so that callers can leave them unset on add.
type NodeInfo struct {
	ID          string
	PortfolioID int
	ParentID    string
	Type        string
	Title       string
	Description string
	URL         string
	Tags        []string
	Order       *int
	IsVisible   *bool
	Content     map[string]string
}

// NodeFilter defines the options for filtering and updating nodes.
type NodeFilter struct {
	ID          bool
	PortfolioID bool
	ParentID    bool
	Type        bool
	Title       bool
	Description bool
	URL         bool
	Tags        bool
	Order       bool
	IsVisible   bool
	Content     bool
}

// NodeFilterAll selects every writable field, used for full-field replacement.
var NodeFilterAll = NodeFilter{
	ParentID:    true,
	Type:        true,
	Title:       true,
	Description: true,
	URL:         true,
	Tags:        true,
	Order:       true,
	IsVisible:   true,
	Content:     true,
}
