package model

// Command represents a user command with its scope, operation, and arguments
type Command struct {
	Scope     string
	Operation string
	Args      []string
}

// View kinds for rendering a materialized portfolio.
const (
	ViewTree     = "tree"
	ViewOutline  = "outline"
	ViewGrid     = "grid"
	ViewBoard    = "board"
	ViewTimeline = "timeline"
)
