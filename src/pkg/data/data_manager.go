// Package data provides data management functionality for the Portfolio Tree application.
// It coordinates operations between user, portfolio, node and asset managers.
package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oklog/ulid/v2"

	"portfoliotree/app/src/pkg/event"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/storage"
)

// DataManager is the main struct that coordinates all data operations
type DataManager struct {
	UserManager      *UserManager
	PortfolioManager *PortfolioManager
	NodeManager      *NodeManager
	AssetManager     *AssetManager
	EventManager     *event.EventManager
	Config           *model.Config
	Logger           *log.Logger
}

// NewDataManager creates a new DataManager over an opened Storage and BlobStore.
func NewDataManager(ctx context.Context, store *storage.Storage, blobStore storage.BlobStore, cfg *model.Config, logger *log.Logger) (*DataManager, error) {
	if store == nil {
		return nil, fmt.Errorf("storage not initialized")
	}
	eventManager := event.NewEventManager(logger)
	m := &DataManager{
		EventManager: eventManager,
		Config:       cfg,
		Logger:       logger,
	}

	// Initialize UserManager
	var err error
	m.UserManager, err = NewUserManager(store.UserStore, eventManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create UserManager: %w", err)
	}

	// Initialize PortfolioManager
	m.PortfolioManager, err = NewPortfolioManager(store.PortfolioStore, eventManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create PortfolioManager: %w", err)
	}

	// Initialize NodeManager
	m.NodeManager, err = NewNodeManager(store.NodeStore, m.PortfolioManager, eventManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create NodeManager: %w", err)
	}

	// Initialize AssetManager
	m.AssetManager, err = NewAssetManager(store.AssetStore, store.NodeStore, blobStore, m.PortfolioManager, eventManager, cfg.UploadMaxBytes, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create AssetManager: %w", err)
	}

	// Handle default user logic
	if cfg.DefaultUserActive && cfg.DefaultUser != "" {
		defaultUserInfo := model.UserInfo{Username: cfg.DefaultUser}
		exists, err := m.UserManager.UserGet(ctx, defaultUserInfo, model.UserFilter{Username: true})
		if err != nil {
			return nil, fmt.Errorf("failed to check default user existence: %w", err)
		}
		if len(exists) == 0 {
			defaultUserInfo.Password = cfg.DefaultUserPassword
			defaultUserInfo.Active = true
			if _, err = m.UserManager.UserAdd(ctx, defaultUserInfo); err != nil {
				return nil, fmt.Errorf("failed to create default user: %w", err)
			}
		}
	}

	// Blobs of deleted portfolios
	eventManager.Subscribe(event.PortfolioDeleted, m.AssetManager.handlePortfolioDeleted)

	// Assets attached to deleted nodes
	eventManager.Subscribe(event.NodeDeleted, m.AssetManager.handleNodeDeleted)

	return m, nil
}

// UserDelete deletes a user together with every portfolio the user owns.
func (m *DataManager) UserDelete(ctx context.Context, user *model.User) error {
	owned, err := m.PortfolioManager.PortfolioGet(ctx, user, model.PortfolioInfo{Owner: user.Username}, model.PortfolioFilter{Owner: true})
	if err != nil {
		return fmt.Errorf("failed to list owned portfolios: %w", err)
	}
	for _, p := range owned {
		if err := m.PortfolioManager.PortfolioDelete(ctx, user, p); err != nil {
			return fmt.Errorf("failed to delete portfolio %d: %w", p.ID, err)
		}
	}
	return m.UserManager.UserDelete(ctx, user)
}

// PortfolioExport writes a portfolio and all its nodes, hidden ones included, to w. Only the owner may export.
func (m *DataManager) PortfolioExport(ctx context.Context, user *model.User, portfolioID int, w io.Writer, format string) error {
	portfolio, nodes, err := m.NodeManager.NodeAll(ctx, user, portfolioID)
	if err != nil {
		return err
	}
	if err := storage.DocumentEncode(w, storage.NewPortfolioDocument(portfolio, nodes), format); err != nil {
		m.Logger.Error(ctx, "Failed to export portfolio", log.Fields{"error": err, "portfolioID": portfolioID})
		return fmt.Errorf("failed to export portfolio: %w", err)
	}
	m.Logger.Info(ctx, "Portfolio exported", log.Fields{"portfolioID": portfolioID, "format": format, "nodes": len(nodes)})
	return nil
}

// PortfolioExportFile exports a portfolio to a file; the format follows the file extension.
func (m *DataManager) PortfolioExportFile(ctx context.Context, user *model.User, portfolioID int, filename string) error {
	format, err := storage.FormatFromPath(filename)
	if err != nil {
		return err
	}
	portfolio, nodes, err := m.NodeManager.NodeAll(ctx, user, portfolioID)
	if err != nil {
		return err
	}
	if err := storage.FileExport(storage.NewPortfolioDocument(portfolio, nodes), filename, format); err != nil {
		return fmt.Errorf("failed to export portfolio: %w", err)
	}
	return nil
}

// PortfolioImport reads a portfolio document from r and stores it as a new portfolio owned by user.
// When replace is set an existing portfolio with the same name is deleted first, otherwise a name
// conflict yields ErrExists.
func (m *DataManager) PortfolioImport(ctx context.Context, user *model.User, r io.Reader, format string, replace bool) (*model.Portfolio, error) {
	doc, err := storage.DocumentDecode(r, format)
	if err != nil {
		return nil, err
	}
	return m.portfolioImport(ctx, user, doc, replace)
}

// PortfolioImportFile imports a portfolio from a file; the format follows the file extension.
func (m *DataManager) PortfolioImportFile(ctx context.Context, user *model.User, filename string, replace bool) (*model.Portfolio, error) {
	format, err := storage.FormatFromPath(filename)
	if err != nil {
		return nil, err
	}
	doc, err := storage.FileImport(filename, format)
	if err != nil {
		return nil, fmt.Errorf("failed to import portfolio: %w", err)
	}
	return m.portfolioImport(ctx, user, doc, replace)
}

// portfolioImport stores doc as a new portfolio of user. The document is validated before
// anything is written. With replace, the new portfolio is stored under a staging name first
// and the old one is only deleted once the import succeeded.
func (m *DataManager) portfolioImport(ctx context.Context, user *model.User, doc *storage.PortfolioDocument, replace bool) (*model.Portfolio, error) {
	if user == nil {
		return nil, model.ErrUnauthenticated
	}
	m.Logger.Info(ctx, "Importing portfolio", log.Fields{"username": user.Username, "portfolioName": doc.Name, "nodes": len(doc.Nodes)})

	name := strings.TrimSpace(doc.Name)
	if err := validatePortfolioName(name); err != nil {
		return nil, err
	}
	nodes, err := importNodes(doc)
	if err != nil {
		m.Logger.Warn(ctx, "Rejected portfolio document", log.Fields{"portfolioName": name, "error": err})
		return nil, err
	}

	existing, err := m.PortfolioManager.PortfolioGet(ctx, user,
		model.PortfolioInfo{Name: name, Owner: user.Username},
		model.PortfolioFilter{Name: true, Owner: true})
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing portfolio: %w", err)
	}
	var old *model.Portfolio
	addName := name
	if len(existing) > 0 {
		if !replace {
			return nil, fmt.Errorf("portfolio '%s': %w", name, model.ErrExists)
		}
		old = existing[0]
		addName = "import-" + ulid.Make().String()
	}

	portfolio, err := m.PortfolioManager.PortfolioAdd(ctx, user, model.PortfolioInfo{
		Name:        addName,
		Description: doc.Description,
		IsPublic:    doc.IsPublic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add imported portfolio: %w", err)
	}
	if err := m.NodeManager.NodeImport(ctx, portfolio, nodes); err != nil {
		// Rollback: delete the newly added portfolio
		return nil, errors.Join(err, m.PortfolioManager.PortfolioDelete(ctx, user, portfolio))
	}

	if old != nil {
		if err := m.PortfolioManager.PortfolioDelete(ctx, user, old); err != nil {
			err = fmt.Errorf("failed to delete replaced portfolio: %w", err)
			return nil, errors.Join(err, m.PortfolioManager.PortfolioDelete(ctx, user, portfolio))
		}
		err := m.PortfolioManager.PortfolioUpdate(ctx, user, portfolio, model.PortfolioInfo{Name: name}, model.PortfolioFilter{Name: true})
		if err != nil {
			m.Logger.Error(ctx, "Imported portfolio kept its staging name", log.Fields{"portfolioID": portfolio.ID, "stagingName": addName, "error": err})
			return nil, fmt.Errorf("failed to rename imported portfolio %d: %w", portfolio.ID, err)
		}
	}

	m.Logger.Info(ctx, "Portfolio imported", log.Fields{"portfolioID": portfolio.ID, "nodes": len(nodes)})
	return portfolio, nil
}

// importNodes converts and validates the nodes of a document. Document ids must be unique;
// nodes without an id are accepted.
func importNodes(doc *storage.PortfolioDocument) ([]*model.Node, error) {
	nodes := doc.ModelNodes()
	seen := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		if n.ID != "" {
			if seen[n.ID] {
				return nil, fmt.Errorf("%w: duplicate node id '%s'", model.ErrInvalidInput, n.ID)
			}
			seen[n.ID] = true
		}
		info := model.NodeInfo{Title: n.Title, Type: n.Type, URL: n.URL, Tags: n.Tags}
		if err := normalizeNodeInfo(&info); err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i+1, n.ID, err)
		}
		n.Title, n.Type, n.URL, n.Tags = info.Title, info.Type, info.URL, info.Tags
	}
	return nodes, nil
}
