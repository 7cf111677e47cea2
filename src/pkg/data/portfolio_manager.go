// Package data provides data management functionality for the Portfolio Tree application.
// This file contains operations related to portfolio management.
package data

import (
	"context"
	"fmt"
	"strings"

	"portfoliotree/app/src/pkg/event"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/storage"
)

// PortfolioOperations defines the interface for portfolio-related operations
type PortfolioOperations interface {
	PortfolioAdd(ctx context.Context, user *model.User, newPortfolioInfo model.PortfolioInfo) (*model.Portfolio, error)
	PortfolioPermission(ctx context.Context, user *model.User, portfolioID int) (model.Permission, *model.Portfolio, error)
	PortfolioAccess(ctx context.Context, user *model.User, portfolioID int, required model.Permission) (*model.Portfolio, model.Permission, error)
	PortfolioGet(ctx context.Context, user *model.User, portfolioInfo model.PortfolioInfo, portfolioFilter model.PortfolioFilter) ([]*model.Portfolio, error)
	PortfolioList(ctx context.Context, user *model.User) ([]*model.Portfolio, error)
	PortfolioPublicList(ctx context.Context) ([]*model.Portfolio, error)
	PortfolioUpdate(ctx context.Context, user *model.User, portfolio *model.Portfolio, portfolioUpdateInfo model.PortfolioInfo, portfolioFilter model.PortfolioFilter) error
	PortfolioDelete(ctx context.Context, user *model.User, portfolio *model.Portfolio) error
}

// PortfolioDeletedData is the payload of a PortfolioDeleted event
type PortfolioDeletedData struct {
	Portfolio *model.Portfolio
	BlobKeys  []string
}

const maxPortfolioNameLength = 128

// PortfolioManager handles all portfolio-related operations and permissions.
type PortfolioManager struct {
	portfolioStore storage.PortfolioStore
	eventManager   *event.EventManager
	logger         *log.Logger
}

// NewPortfolioManager creates a new PortfolioManager instance.
func NewPortfolioManager(portfolioStore storage.PortfolioStore, eventManager *event.EventManager, logger *log.Logger) (*PortfolioManager, error) {
	ctx := context.Background()
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	if portfolioStore == nil {
		logger.Error(ctx, "PortfolioStore not initialized", nil)
		return nil, fmt.Errorf("portfolioStore not initialized")
	}
	if eventManager == nil {
		logger.Error(ctx, "EventManager not initialized", nil)
		return nil, fmt.Errorf("eventManager not initialized")
	}

	return &PortfolioManager{
		portfolioStore: portfolioStore,
		eventManager:   eventManager,
		logger:         logger,
	}, nil
}

func validatePortfolioName(name string) error {
	if strings.TrimSpace(name) == "" || len(name) > maxPortfolioNameLength {
		return fmt.Errorf("%w: portfolio name must be 1 to %d characters", model.ErrInvalidInput, maxPortfolioNameLength)
	}
	return nil
}

// PortfolioAdd creates a new portfolio owned by user.
func (pm *PortfolioManager) PortfolioAdd(ctx context.Context, user *model.User, newPortfolioInfo model.PortfolioInfo) (*model.Portfolio, error) {
	if user == nil {
		return nil, model.ErrUnauthenticated
	}
	pm.logger.Info(ctx, "Adding new portfolio", log.Fields{"username": user.Username, "portfolioName": newPortfolioInfo.Name})

	newPortfolioInfo.Name = strings.TrimSpace(newPortfolioInfo.Name)
	if err := validatePortfolioName(newPortfolioInfo.Name); err != nil {
		return nil, err
	}

	// Check if the user already has a portfolio with the same name
	existing, err := pm.portfolioStore.PortfolioGet(ctx,
		model.PortfolioInfo{Name: newPortfolioInfo.Name, Owner: user.Username},
		model.PortfolioFilter{Name: true, Owner: true})
	if err != nil {
		pm.logger.Error(ctx, "Failed to check for existing portfolio", log.Fields{"error": err, "portfolioName": newPortfolioInfo.Name})
		return nil, fmt.Errorf("failed to check for existing portfolio: %w", err)
	}
	if len(existing) > 0 {
		pm.logger.Warn(ctx, "Portfolio with the same name already exists", log.Fields{"portfolioName": newPortfolioInfo.Name})
		return nil, fmt.Errorf("portfolio '%s': %w", newPortfolioInfo.Name, model.ErrExists)
	}

	newPortfolioInfo.Owner = user.Username
	id, err := pm.portfolioStore.PortfolioAdd(ctx, user, newPortfolioInfo)
	if err != nil {
		pm.logger.Error(ctx, "Failed to add portfolio", log.Fields{"error": err, "portfolioName": newPortfolioInfo.Name})
		return nil, fmt.Errorf("failed to add portfolio: %w", err)
	}

	portfolios, err := pm.portfolioStore.PortfolioGet(ctx, model.PortfolioInfo{ID: id}, model.PortfolioFilter{ID: true})
	if err != nil {
		pm.logger.Error(ctx, "Failed to get the new portfolio", log.Fields{"error": err, "portfolioID": id})
		return nil, fmt.Errorf("failed to get the new portfolio: %w", err)
	}
	if len(portfolios) == 0 {
		pm.logger.Error(ctx, "Could not find the new portfolio", log.Fields{"portfolioID": id})
		return nil, fmt.Errorf("could not find the new portfolio")
	}
	newPortfolio := portfolios[0]

	pm.eventManager.Publish(ctx, event.Event{
		Type: event.PortfolioAdded,
		Data: newPortfolio,
	})

	pm.logger.Info(ctx, "Portfolio added successfully", log.Fields{"portfolioID": id, "portfolioName": newPortfolio.Name})
	return newPortfolio, nil
}

// PortfolioPermission returns the permission of user on a portfolio: owner, read for public portfolios, none otherwise.
// A nil user is an anonymous visitor.
func (pm *PortfolioManager) PortfolioPermission(ctx context.Context, user *model.User, portfolioID int) (model.Permission, *model.Portfolio, error) {
	portfolios, err := pm.portfolioStore.PortfolioGet(ctx, model.PortfolioInfo{ID: portfolioID}, model.PortfolioFilter{ID: true})
	if err != nil {
		pm.logger.Error(ctx, "Failed to get portfolio", log.Fields{"error": err, "portfolioID": portfolioID})
		return model.PermissionNone, nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	if len(portfolios) == 0 {
		return model.PermissionNone, nil, fmt.Errorf("portfolio %d: %w", portfolioID, model.ErrNotFound)
	}
	portfolio := portfolios[0]

	switch {
	case user != nil && portfolio.Owner == user.Username:
		return model.PermissionOwner, portfolio, nil
	case portfolio.IsPublic:
		return model.PermissionRead, portfolio, nil
	default:
		return model.PermissionNone, portfolio, nil
	}
}

// PortfolioAccess loads a portfolio and checks that user holds at least the required permission.
// A portfolio the user cannot see is reported as not found.
func (pm *PortfolioManager) PortfolioAccess(ctx context.Context, user *model.User, portfolioID int, required model.Permission) (*model.Portfolio, model.Permission, error) {
	permission, portfolio, err := pm.PortfolioPermission(ctx, user, portfolioID)
	if err != nil {
		return nil, model.PermissionNone, err
	}
	if permission == model.PermissionNone {
		return nil, permission, fmt.Errorf("portfolio %d: %w", portfolioID, model.ErrNotFound)
	}
	if permission < required {
		pm.logger.Warn(ctx, "Insufficient portfolio permission", log.Fields{"portfolioID": portfolioID, "permission": int(permission)})
		return nil, permission, fmt.Errorf("portfolio %d: %w", portfolioID, model.ErrPermission)
	}
	return portfolio, permission, nil
}

// PortfolioGet retrieves portfolios matching the filter that user is allowed to see.
func (pm *PortfolioManager) PortfolioGet(ctx context.Context, user *model.User, portfolioInfo model.PortfolioInfo, portfolioFilter model.PortfolioFilter) ([]*model.Portfolio, error) {
	portfolios, err := pm.portfolioStore.PortfolioGet(ctx, portfolioInfo, portfolioFilter)
	if err != nil {
		pm.logger.Error(ctx, "Failed to get portfolios", log.Fields{"error": err})
		return nil, fmt.Errorf("failed to get portfolios: %w", err)
	}

	// Filter portfolios based on user permissions
	var allowed []*model.Portfolio
	for _, portfolio := range portfolios {
		if portfolio.IsPublic || (user != nil && portfolio.Owner == user.Username) {
			allowed = append(allowed, portfolio)
		}
	}
	return allowed, nil
}

// PortfolioList returns the portfolios owned by user followed by the public ones of other users.
func (pm *PortfolioManager) PortfolioList(ctx context.Context, user *model.User) ([]*model.Portfolio, error) {
	if user == nil {
		return pm.PortfolioPublicList(ctx)
	}
	portfolios, err := pm.portfolioStore.PortfolioAccessible(ctx, user.Username)
	if err != nil {
		pm.logger.Error(ctx, "Failed to list portfolios", log.Fields{"error": err, "username": user.Username})
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return portfolios, nil
}

// PortfolioPublicList returns every public portfolio.
func (pm *PortfolioManager) PortfolioPublicList(ctx context.Context) ([]*model.Portfolio, error) {
	portfolios, err := pm.portfolioStore.PortfolioGet(ctx, model.PortfolioInfo{IsPublic: true}, model.PortfolioFilter{IsPublic: true})
	if err != nil {
		pm.logger.Error(ctx, "Failed to list public portfolios", log.Fields{"error": err})
		return nil, fmt.Errorf("failed to list public portfolios: %w", err)
	}
	return portfolios, nil
}

// PortfolioUpdate updates an existing portfolio's information. Only the owner may update.
func (pm *PortfolioManager) PortfolioUpdate(ctx context.Context, user *model.User, portfolio *model.Portfolio, portfolioUpdateInfo model.PortfolioInfo, portfolioFilter model.PortfolioFilter) error {
	if user == nil || portfolio.Owner != user.Username {
		pm.logger.Warn(ctx, "User does not have permission to update portfolio", log.Fields{"portfolioID": portfolio.ID})
		return fmt.Errorf("update portfolio %d: %w", portfolio.ID, model.ErrPermission)
	}
	pm.logger.Info(ctx, "Updating portfolio", log.Fields{"username": user.Username, "portfolioID": portfolio.ID})

	// Ownership transfer is not supported
	portfolioFilter.Owner = false
	portfolioFilter.ID = false

	if portfolioFilter.Name {
		portfolioUpdateInfo.Name = strings.TrimSpace(portfolioUpdateInfo.Name)
		if err := validatePortfolioName(portfolioUpdateInfo.Name); err != nil {
			return err
		}
		if portfolioUpdateInfo.Name != portfolio.Name {
			existing, err := pm.portfolioStore.PortfolioGet(ctx,
				model.PortfolioInfo{Name: portfolioUpdateInfo.Name, Owner: user.Username},
				model.PortfolioFilter{Name: true, Owner: true})
			if err != nil {
				return fmt.Errorf("failed to check for existing portfolio: %w", err)
			}
			if len(existing) > 0 {
				return fmt.Errorf("portfolio '%s': %w", portfolioUpdateInfo.Name, model.ErrExists)
			}
		}
	}

	if err := pm.portfolioStore.PortfolioUpdate(ctx, portfolio, portfolioUpdateInfo, portfolioFilter); err != nil {
		pm.logger.Error(ctx, "Failed to update portfolio in storage", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return fmt.Errorf("failed to update portfolio in storage: %w", err)
	}

	// Update portfolio fields based on the filter
	if portfolioFilter.Name {
		portfolio.Name = portfolioUpdateInfo.Name
	}
	if portfolioFilter.Description {
		portfolio.Description = portfolioUpdateInfo.Description
	}
	if portfolioFilter.IsPublic {
		portfolio.IsPublic = portfolioUpdateInfo.IsPublic
	}

	pm.eventManager.Publish(ctx, event.Event{
		Type: event.PortfolioUpdated,
		Data: portfolio,
	})

	pm.logger.Info(ctx, "Portfolio updated successfully", log.Fields{"portfolioID": portfolio.ID})
	return nil
}

// PortfolioDelete removes a portfolio and all its nodes. Only the owner may delete.
func (pm *PortfolioManager) PortfolioDelete(ctx context.Context, user *model.User, portfolio *model.Portfolio) error {
	if user == nil || portfolio.Owner != user.Username {
		pm.logger.Warn(ctx, "User does not have permission to delete portfolio", log.Fields{"portfolioID": portfolio.ID})
		return fmt.Errorf("delete portfolio %d: %w", portfolio.ID, model.ErrPermission)
	}
	pm.logger.Info(ctx, "Deleting portfolio", log.Fields{"username": user.Username, "portfolioID": portfolio.ID})

	keys, err := pm.portfolioStore.PortfolioDelete(ctx, portfolio)
	if err != nil {
		pm.logger.Error(ctx, "Failed to delete portfolio", log.Fields{"error": err, "portfolioID": portfolio.ID})
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}

	pm.eventManager.Publish(ctx, event.Event{
		Type: event.PortfolioDeleted,
		Data: PortfolioDeletedData{Portfolio: portfolio, BlobKeys: keys},
	})

	pm.logger.Info(ctx, "Portfolio deleted successfully", log.Fields{"portfolioID": portfolio.ID})
	return nil
}
