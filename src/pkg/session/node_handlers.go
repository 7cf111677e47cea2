package session

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

var indexPattern = regexp.MustCompile(`^[1-9][0-9]*(\.[1-9][0-9]*)*$`)

// resolveNode turns a node reference into a node id. A reference is either a
// dotted outline index ("2.1" = first child of the second root) or a node id.
func resolveNode(ctx context.Context, s *Session, portfolio *model.Portfolio, ref string) (string, error) {
	if !indexPattern.MatchString(ref) {
		return ref, nil
	}
	t, err := s.DataManager.NodeManager.NodeTree(ctx, s.User(), portfolio.ID)
	if err != nil {
		return "", err
	}
	level := t.Roots
	var id string
	for _, part := range strings.Split(ref, ".") {
		i, _ := strconv.Atoi(part)
		if i > len(level) {
			return "", fmt.Errorf("node index %s: %w", ref, model.ErrNotFound)
		}
		id = level[i-1].Node.ID
		level = level[i-1].Children
	}
	return id, nil
}

// resolveParent is resolveNode with "-" and "root" standing for the top level.
func resolveParent(ctx context.Context, s *Session, portfolio *model.Portfolio, ref string) (string, error) {
	if ref == "-" || strings.EqualFold(ref, "root") {
		return "", nil
	}
	return resolveNode(ctx, s, portfolio, ref)
}

// parseNodeFields reads <field>:<value> arguments. Known fields map onto the
// node, anything else goes into the content map.
func parseNodeFields(info *model.NodeInfo, args []string) error {
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, ":")
		if !ok || key == "" {
			return fmt.Errorf("%w: expected <field>:<value>, got '%s'", model.ErrInvalidInput, arg)
		}
		switch strings.ToLower(key) {
		case "type":
			info.Type = value
		case "url":
			info.URL = value
		case "description", "desc":
			info.Description = value
		case "tags":
			info.Tags = strings.Split(value, ",")
		case "order":
			order, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%w: order must be an integer", model.ErrInvalidInput)
			}
			info.Order = &order
		case "visible":
			visible, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%w: visible must be true or false", model.ErrInvalidInput)
			}
			info.IsVisible = &visible
		default:
			if info.Content == nil {
				info.Content = make(map[string]string)
			}
			info.Content[key] = value
		}
	}
	return nil
}

// handleNodeAdd handles the node add command
func handleNodeAdd(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling node add command", log.Fields{"args": cmd.Args})

	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	parentID, err := resolveParent(ctx, s, portfolio, cmd.Args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get parent node: %w", err)
	}
	info := model.NodeInfo{ParentID: parentID, Title: cmd.Args[1]}
	if err := parseNodeFields(&info, cmd.Args[2:]); err != nil {
		return nil, err
	}

	node, err := s.DataManager.NodeManager.NodeAdd(ctx, s.User(), portfolio.ID, info)
	if err != nil {
		return nil, fmt.Errorf("failed to add node: %w", err)
	}
	return node, nil
}

// handleNodeUpdate replaces the fields of a node; the parent stays where it is
func handleNodeUpdate(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling node update command", log.Fields{"args": cmd.Args})

	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	nodeID, err := resolveNode(ctx, s, portfolio, cmd.Args[0])
	if err != nil {
		return nil, err
	}
	node, err := s.DataManager.NodeManager.NodeGet(ctx, s.User(), portfolio.ID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	info := model.NodeInfo{ParentID: node.ParentID, Title: cmd.Args[1]}
	if err := parseNodeFields(&info, cmd.Args[2:]); err != nil {
		return nil, err
	}
	updated, err := s.DataManager.NodeManager.NodeUpdate(ctx, s.User(), portfolio.ID, nodeID, info)
	if err != nil {
		return nil, fmt.Errorf("failed to update node: %w", err)
	}
	return updated, nil
}

// handleNodeMove handles the node move command
func handleNodeMove(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling node move command", log.Fields{"args": cmd.Args})

	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	nodeID, err := resolveNode(ctx, s, portfolio, cmd.Args[0])
	if err != nil {
		return nil, err
	}
	parentID, err := resolveParent(ctx, s, portfolio, cmd.Args[1])
	if err != nil {
		return nil, err
	}
	var order *int
	if len(cmd.Args) == 3 {
		o, err := strconv.Atoi(cmd.Args[2])
		if err != nil {
			return nil, fmt.Errorf("%w: order must be an integer", model.ErrInvalidInput)
		}
		order = &o
	}

	node, err := s.DataManager.NodeManager.NodeMove(ctx, s.User(), portfolio.ID, nodeID, parentID, order)
	if err != nil {
		return nil, fmt.Errorf("failed to move node: %w", err)
	}
	return node, nil
}

// handleNodeReorder sets the order of all children of a parent
func handleNodeReorder(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling node reorder command", log.Fields{"args": cmd.Args})

	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	parentID, err := resolveParent(ctx, s, portfolio, cmd.Args[0])
	if err != nil {
		return nil, err
	}
	// Resolve every index against the tree as it is before the reorder.
	ids := make([]string, 0, len(cmd.Args)-1)
	for _, ref := range cmd.Args[1:] {
		id, err := resolveNode(ctx, s, portfolio, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := s.DataManager.NodeManager.NodeReorder(ctx, s.User(), portfolio.ID, parentID, ids); err != nil {
		return nil, fmt.Errorf("failed to reorder nodes: %w", err)
	}
	return "Nodes reordered", nil
}

func setVisibility(ctx context.Context, s *Session, ref string, visible bool) (interface{}, error) {
	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	nodeID, err := resolveNode(ctx, s, portfolio, ref)
	if err != nil {
		return nil, err
	}
	if err := s.DataManager.NodeManager.NodeVisibility(ctx, s.User(), portfolio.ID, nodeID, visible); err != nil {
		return nil, fmt.Errorf("failed to change node visibility: %w", err)
	}
	if visible {
		return "Node shown", nil
	}
	return "Node hidden", nil
}

// handleNodeHide hides a node from visitors
func handleNodeHide(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	return setVisibility(ctx, s, cmd.Args[0], false)
}

// handleNodeShow makes a hidden node visible again
func handleNodeShow(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	return setVisibility(ctx, s, cmd.Args[0], true)
}

// handleNodeDelete deletes a node and its subtree
func handleNodeDelete(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling node delete command", log.Fields{"args": cmd.Args})

	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	nodeID, err := resolveNode(ctx, s, portfolio, cmd.Args[0])
	if err != nil {
		return nil, err
	}
	ids, err := s.DataManager.NodeManager.NodeDelete(ctx, s.User(), portfolio.ID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete node: %w", err)
	}
	return fmt.Sprintf("Deleted %d node(s)", len(ids)), nil
}

// handleNodeFind searches the selected portfolio
func handleNodeFind(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	return s.DataManager.NodeManager.NodeFind(ctx, s.User(), portfolio.ID, strings.Join(cmd.Args, " "))
}
