package adapter

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/storage"
)

var formatContentTypes = map[string]string{
	storage.FormatJSON: "application/json",
	storage.FormatXML:  "application/xml",
	storage.FormatYAML: "application/yaml",
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type portfolioRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

type nodeRequest struct {
	ParentID    *string           `json:"parent_id"`
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	URL         string            `json:"url"`
	Tags        []string          `json:"tags"`
	Order       *int              `json:"order"`
	IsVisible   *bool             `json:"is_visible"`
	Content     map[string]string `json:"content"`
}

func (n nodeRequest) info() model.NodeInfo {
	info := model.NodeInfo{
		Type:        n.Type,
		Title:       n.Title,
		Description: n.Description,
		URL:         n.URL,
		Tags:        n.Tags,
		Order:       n.Order,
		IsVisible:   n.IsVisible,
		Content:     n.Content,
	}
	if n.ParentID != nil {
		info.ParentID = *n.ParentID
	}
	return info
}

type moveRequest struct {
	ParentID string `json:"parent_id"`
	Order    *int   `json:"order"`
}

type reorderRequest struct {
	ParentID string   `json:"parent_id"`
	NodeIDs  []string `json:"node_ids"`
}

type visibilityRequest struct {
	IsVisible bool `json:"is_visible"`
}

func (a *HTTPAdapter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// login authenticates and binds the user to the request's session, creating one when needed
func (a *HTTPAdapter) login(w http.ResponseWriter, r *http.Request, creds credentials) (*model.User, error) {
	ctx := r.Context()
	user, err := a.dataManager.UserManager.UserAuthenticate(ctx, model.UserInfo{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return nil, err
	}

	s := sessionFrom(r)
	if s == nil {
		sessionID, err := a.adapterManager.SessionAdd()
		if err != nil {
			return nil, err
		}
		s, _ = a.adapterManager.SessionGet(sessionID)
		if s == nil {
			return nil, fmt.Errorf("session %s vanished after creation", sessionID)
		}
	}
	s.UserSet(user)
	if err := a.setSessionCookie(w, s.ID); err != nil {
		return nil, err
	}
	a.logger.Info(ctx, "HTTP login", log.Fields{"username": user.Username, "sessionID": s.ID})
	return user, nil
}

func (a *HTTPAdapter) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		a.writeError(w, r, err)
		return
	}
	if _, err := a.dataManager.UserManager.UserAdd(r.Context(), model.UserInfo{Username: creds.Username, Password: creds.Password, Active: true}); err != nil {
		a.writeError(w, r, err)
		return
	}
	user, err := a.login(w, r, creds)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *HTTPAdapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		a.writeError(w, r, err)
		return
	}
	user, err := a.login(w, r, creds)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *HTTPAdapter) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s := sessionFrom(r); s != nil {
		a.adapterManager.SessionDelete(s.ID)
	}
	a.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *HTTPAdapter) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *HTTPAdapter) handlePortfolioList(w http.ResponseWriter, r *http.Request) {
	portfolios, err := a.dataManager.PortfolioManager.PortfolioList(r.Context(), userFrom(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolios)
}

func (a *HTTPAdapter) handlePortfolioAdd(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var req portfolioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	var info model.PortfolioInfo
	if req.Name != nil {
		info.Name = *req.Name
	}
	if req.Description != nil {
		info.Description = *req.Description
	}
	if req.IsPublic != nil {
		info.IsPublic = *req.IsPublic
	}

	portfolio, err := a.dataManager.PortfolioManager.PortfolioAdd(r.Context(), user, info)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, portfolio)
}

func (a *HTTPAdapter) handlePortfolioGet(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	portfolio, _, err := a.dataManager.PortfolioManager.PortfolioAccess(r.Context(), userFrom(r), id, model.PermissionRead)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio)
}

func (a *HTTPAdapter) handlePortfolioUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req portfolioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	var info model.PortfolioInfo
	var filter model.PortfolioFilter
	if req.Name != nil {
		info.Name, filter.Name = *req.Name, true
	}
	if req.Description != nil {
		info.Description, filter.Description = *req.Description, true
	}
	if req.IsPublic != nil {
		info.IsPublic, filter.IsPublic = *req.IsPublic, true
	}
	if !filter.Name && !filter.Description && !filter.IsPublic {
		a.writeError(w, r, fmt.Errorf("%w: nothing to update", model.ErrInvalidInput))
		return
	}

	portfolio, _, err := a.dataManager.PortfolioManager.PortfolioAccess(r.Context(), user, id, model.PermissionOwner)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.dataManager.PortfolioManager.PortfolioUpdate(r.Context(), user, portfolio, info, filter); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio)
}

func (a *HTTPAdapter) handlePortfolioDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	portfolio, _, err := a.dataManager.PortfolioManager.PortfolioAccess(r.Context(), user, id, model.PermissionOwner)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.dataManager.PortfolioManager.PortfolioDelete(r.Context(), user, portfolio); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *HTTPAdapter) handlePortfolioTree(w http.ResponseWriter, r *http.Request) {
	a.writeView(w, r, userFrom(r))
}

func (a *HTTPAdapter) writeView(w http.ResponseWriter, r *http.Request, user *model.User) {
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	view, err := a.dataManager.NodeManager.NodeView(r.Context(), user, id, r.URL.Query().Get("view"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func exportFormat(r *http.Request) (string, error) {
	format := r.URL.Query().Get("format")
	if format == "" {
		return storage.FormatJSON, nil
	}
	if _, ok := formatContentTypes[format]; !ok {
		return "", fmt.Errorf("%w: unsupported format %q", model.ErrInvalidInput, format)
	}
	return format, nil
}

func (a *HTTPAdapter) handlePortfolioExport(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	format, err := exportFormat(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := a.dataManager.PortfolioExport(r.Context(), user, id, &buf, format); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", formatContentTypes[format])
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": fmt.Sprintf("portfolio-%d.%s", id, format),
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *HTTPAdapter) handlePortfolioImport(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	format, err := exportFormat(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))

	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	portfolio, err := a.dataManager.PortfolioImport(r.Context(), user, body, format, replace)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, portfolio)
}

func (a *HTTPAdapter) handleNodeFind(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	nodes, err := a.dataManager.NodeManager.NodeFind(r.Context(), userFrom(r), id, r.URL.Query().Get("q"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (a *HTTPAdapter) handleNodeAdd(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req nodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	node, err := a.dataManager.NodeManager.NodeAdd(r.Context(), user, id, req.info())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (a *HTTPAdapter) handleNodeGet(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	node, err := a.dataManager.NodeManager.NodeGet(r.Context(), userFrom(r), id, r.PathValue("nodeID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// handleNodeUpdate replaces a node; an absent parent_id keeps the node where it is
func (a *HTTPAdapter) handleNodeUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req nodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	nodeID := r.PathValue("nodeID")
	info := req.info()
	if req.ParentID == nil {
		current, err := a.dataManager.NodeManager.NodeGet(r.Context(), user, id, nodeID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		info.ParentID = current.ParentID
	}

	node, err := a.dataManager.NodeManager.NodeUpdate(r.Context(), user, id, nodeID, info)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (a *HTTPAdapter) handleNodeDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ids, err := a.dataManager.NodeManager.NodeDelete(r.Context(), user, id, r.PathValue("nodeID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"deleted": ids})
}

func (a *HTTPAdapter) handleNodeMove(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	node, err := a.dataManager.NodeManager.NodeMove(r.Context(), user, id, r.PathValue("nodeID"), req.ParentID, req.Order)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (a *HTTPAdapter) handleNodeVisibility(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req visibilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.dataManager.NodeManager.NodeVisibility(r.Context(), user, id, r.PathValue("nodeID"), req.IsVisible); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *HTTPAdapter) handleNodeReorder(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.dataManager.NodeManager.NodeReorder(r.Context(), user, id, req.ParentID, req.NodeIDs); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *HTTPAdapter) handleAssetList(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	assets, err := a.dataManager.AssetManager.AssetList(r.Context(), userFrom(r), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// handleAssetAdd streams a multipart upload. A node_id field must precede the file part.
func (a *HTTPAdapter) handleAssetAdd(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxUploadBytes+maxJSONBodyBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: expected multipart/form-data: %v", model.ErrInvalidInput, err))
		return
	}

	var nodeID string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			a.writeError(w, r, fmt.Errorf("%w: malformed multipart body: %v", model.ErrInvalidInput, err))
			return
		}

		switch part.FormName() {
		case "node_id":
			b, err := io.ReadAll(io.LimitReader(part, 128))
			if err != nil {
				a.writeError(w, r, err)
				return
			}
			nodeID = string(b)
		case "file":
			asset, err := a.dataManager.AssetManager.AssetAdd(r.Context(), user, id, data.AssetUpload{
				NodeID:      nodeID,
				FileName:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Size:        -1,
				Body:        part,
			})
			if err != nil {
				a.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, asset)
			return
		}
		part.Close()
	}
	a.writeError(w, r, fmt.Errorf("%w: missing file part", model.ErrInvalidInput))
}

func (a *HTTPAdapter) handleAssetGet(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	asset, body, err := a.dataManager.AssetManager.AssetOpen(r.Context(), userFrom(r), id, r.PathValue("assetID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": asset.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		a.logger.Warn(r.Context(), "Asset download interrupted", log.Fields{"assetID": asset.ID, "error": err})
	}
}

func (a *HTTPAdapter) handleAssetDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, err := portfolioID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.dataManager.AssetManager.AssetDelete(r.Context(), user, id, r.PathValue("assetID")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *HTTPAdapter) handlePublicList(w http.ResponseWriter, r *http.Request) {
	portfolios, err := a.dataManager.PortfolioManager.PortfolioPublicList(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolios)
}

// handlePublicTree renders a portfolio as an anonymous visitor sees it, even for its owner
func (a *HTTPAdapter) handlePublicTree(w http.ResponseWriter, r *http.Request) {
	a.writeView(w, r, nil)
}
