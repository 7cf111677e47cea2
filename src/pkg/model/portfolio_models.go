package model

import "time"

// Permission is the access level a user has on a portfolio.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionRead
	PermissionOwner
)

// Portfolio groups the content nodes of one user and controls public access to them.
type Portfolio struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Owner       string    `json:"owner"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// PortfolioInfo contains basic information about a portfolio.
type PortfolioInfo struct {
	ID          int
	Name        string
	Owner       string
	Description string
	IsPublic    bool
}

// PortfolioFilter defines the options for filtering portfolio data.
type PortfolioFilter struct {
	ID          bool
	Name        bool
	Owner       bool
	Description bool
	IsPublic    bool
}

// Asset is an uploaded file attached to a portfolio and optionally to one of its nodes.
type Asset struct {
	ID          string    `json:"id"`
	PortfolioID int       `json:"portfolio_id"`
	NodeID      string    `json:"node_id,omitempty"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"-"`
	Created     time.Time `json:"created"`
}

// AssetFilter defines the options for filtering assets.
type AssetFilter struct {
	ID          bool
	PortfolioID bool
	NodeID      bool
}
