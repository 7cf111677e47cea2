package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

// findPortfolio resolves a portfolio by id or name among those visible to the session user.
// Own portfolios win over public ones with the same name.
func findPortfolio(ctx context.Context, s *Session, ref string) (*model.Portfolio, error) {
	user := s.User()
	portfolios, err := s.DataManager.PortfolioManager.PortfolioList(ctx, user)
	if err != nil {
		return nil, err
	}

	if id, err := strconv.Atoi(ref); err == nil {
		for _, p := range portfolios {
			if p.ID == id {
				return p, nil
			}
		}
	}
	var match *model.Portfolio
	for _, p := range portfolios {
		if p.Name != ref {
			continue
		}
		if user != nil && p.Owner == user.Username {
			return p, nil
		}
		if match == nil {
			match = p
		}
	}
	if match == nil {
		return nil, fmt.Errorf("portfolio '%s': %w", ref, model.ErrNotFound)
	}
	return match, nil
}

// targetPortfolio returns the portfolio named in args[i], or the selected one when the argument is absent.
func targetPortfolio(ctx context.Context, s *Session, args []string, i int) (*model.Portfolio, error) {
	if len(args) > i {
		return findPortfolio(ctx, s, args[i])
	}
	return s.PortfolioGet()
}

func parseVisibility(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "public":
		return true, nil
	case "private":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected public or private, got '%s'", model.ErrInvalidInput, arg)
	}
}

// handlePortfolioAdd creates a portfolio and selects it
func handlePortfolioAdd(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling portfolio add command", log.Fields{"name": cmd.Args[0]})

	user, err := s.UserGet()
	if err != nil {
		return nil, err
	}
	info := model.PortfolioInfo{Name: cmd.Args[0]}
	if len(cmd.Args) > 1 {
		info.Description = cmd.Args[1]
	}
	if len(cmd.Args) > 2 {
		if info.IsPublic, err = parseVisibility(cmd.Args[2]); err != nil {
			return nil, err
		}
	}

	portfolio, err := s.DataManager.PortfolioManager.PortfolioAdd(ctx, user, info)
	if err != nil {
		return nil, fmt.Errorf("failed to add portfolio: %w", err)
	}
	s.PortfolioSet(portfolio)
	return portfolio, nil
}

// handlePortfolioUpdate renames the selected portfolio and optionally replaces its description
func handlePortfolioUpdate(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling portfolio update command", log.Fields{"args": cmd.Args})

	user, err := s.UserGet()
	if err != nil {
		return nil, err
	}
	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}

	info := model.PortfolioInfo{Name: cmd.Args[0]}
	filter := model.PortfolioFilter{Name: true}
	if len(cmd.Args) > 1 {
		info.Description = cmd.Args[1]
		filter.Description = true
	}
	if err := s.DataManager.PortfolioManager.PortfolioUpdate(ctx, user, portfolio, info, filter); err != nil {
		return nil, fmt.Errorf("failed to update portfolio: %w", err)
	}
	return portfolio, nil
}

// handlePortfolioDelete deletes the named or the selected portfolio
func handlePortfolioDelete(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling portfolio delete command", log.Fields{"args": cmd.Args})

	user, err := s.UserGet()
	if err != nil {
		return nil, err
	}
	portfolio, err := targetPortfolio(ctx, s, cmd.Args, 0)
	if err != nil {
		return nil, err
	}
	if err := s.DataManager.PortfolioManager.PortfolioDelete(ctx, user, portfolio); err != nil {
		return nil, fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if current, err := s.PortfolioGet(); err == nil && current.ID == portfolio.ID {
		s.PortfolioSet(nil)
	}
	return fmt.Sprintf("Portfolio '%s' deleted", portfolio.Name), nil
}

// handlePortfolioPermission shows or changes whether a portfolio is public
func handlePortfolioPermission(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling portfolio permission command", log.Fields{"args": cmd.Args})

	portfolio, err := findPortfolio(ctx, s, cmd.Args[0])
	if err != nil {
		return nil, err
	}
	if len(cmd.Args) == 1 {
		if portfolio.IsPublic {
			return fmt.Sprintf("Portfolio '%s' is public", portfolio.Name), nil
		}
		return fmt.Sprintf("Portfolio '%s' is private", portfolio.Name), nil
	}

	user, err := s.UserGet()
	if err != nil {
		return nil, err
	}
	public, err := parseVisibility(cmd.Args[1])
	if err != nil {
		return nil, err
	}
	err = s.DataManager.PortfolioManager.PortfolioUpdate(ctx, user, portfolio, model.PortfolioInfo{IsPublic: public}, model.PortfolioFilter{IsPublic: true})
	if err != nil {
		return nil, fmt.Errorf("failed to change portfolio permission: %w", err)
	}
	return fmt.Sprintf("Portfolio '%s' is now %s", portfolio.Name, strings.ToLower(cmd.Args[1])), nil
}

// handlePortfolioImport imports a portfolio file and selects it
func handlePortfolioImport(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling portfolio import command", log.Fields{"filename": cmd.Args[0]})

	user, err := s.UserGet()
	if err != nil {
		return nil, err
	}
	replace := false
	if len(cmd.Args) == 2 {
		if cmd.Args[1] != "--replace" {
			return nil, fmt.Errorf("%w: unknown option '%s'", model.ErrInvalidInput, cmd.Args[1])
		}
		replace = true
	}

	portfolio, err := s.DataManager.PortfolioImportFile(ctx, user, cmd.Args[0], replace)
	if err != nil {
		return nil, fmt.Errorf("failed to import portfolio: %w", err)
	}
	s.PortfolioSet(portfolio)
	return portfolio, nil
}

// handlePortfolioExport writes the named or the selected portfolio to a file
func handlePortfolioExport(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling portfolio export command", log.Fields{"filename": cmd.Args[0]})

	user, err := s.UserGet()
	if err != nil {
		return nil, err
	}
	portfolio, err := targetPortfolio(ctx, s, cmd.Args, 1)
	if err != nil {
		return nil, err
	}
	if err := s.DataManager.PortfolioExportFile(ctx, user, portfolio.ID, cmd.Args[0]); err != nil {
		return nil, fmt.Errorf("failed to export portfolio: %w", err)
	}
	return fmt.Sprintf("Portfolio '%s' exported to %s", portfolio.Name, cmd.Args[0]), nil
}

// handlePortfolioSelect selects a portfolio, or clears the selection without arguments
func handlePortfolioSelect(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	s.logger.Info(ctx, "Handling portfolio select command", log.Fields{"args": cmd.Args})

	if len(cmd.Args) == 0 {
		s.PortfolioSet(nil)
		return "Portfolio deselected", nil
	}
	portfolio, err := findPortfolio(ctx, s, cmd.Args[0])
	if err != nil {
		return nil, err
	}
	s.PortfolioSet(portfolio)
	return portfolio, nil
}

// handlePortfolioList lists the portfolios visible to the session
func handlePortfolioList(ctx context.Context, s *Session, _ model.Command) (interface{}, error) {
	portfolios, err := s.DataManager.PortfolioManager.PortfolioList(ctx, s.User())
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return portfolios, nil
}

// handlePortfolioView renders the selected portfolio
func handlePortfolioView(ctx context.Context, s *Session, cmd model.Command) (interface{}, error) {
	portfolio, err := s.PortfolioGet()
	if err != nil {
		return nil, err
	}
	kind := model.ViewOutline
	if len(cmd.Args) == 1 {
		kind = strings.ToLower(cmd.Args[0])
	}
	return s.DataManager.NodeManager.NodeView(ctx, s.User(), portfolio.ID, kind)
}
