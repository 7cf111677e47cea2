package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"

	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/session"
)

// AdapterTypeHTTP is the registered type of the HTTP adapter
const AdapterTypeHTTP = "http"

const (
	sessionCookie     = "pt_session"
	maxJSONBodyBytes  = 1 << 20
	maxImportBytes    = 16 << 20
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// HTTPConfig holds the settings of the HTTP adapter.
type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
	Secret         []byte
	SessionTTL     time.Duration
	MaxUploadBytes int64
	SecureCookie   bool
}

// HTTPAdapter serves the JSON API. Clients are tracked with a signed session cookie
// that points at a session of the SessionManager.
type HTTPAdapter struct {
	adapterManager *AdapterManager
	dataManager    *data.DataManager
	config         HTTPConfig
	handler        http.Handler
	server         *http.Server
	logger         *log.Logger
}

// NewHTTPAdapter creates the adapter and its routes
func NewHTTPAdapter(am *AdapterManager, dm *data.DataManager, cfg HTTPConfig, logger *log.Logger) (*HTTPAdapter, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: session secret is required", model.ErrInvalidInput)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultSessionTimeout
	}

	a := &HTTPAdapter{
		adapterManager: am,
		dataManager:    dm,
		config:         cfg,
		logger:         logger,
	}
	a.handler = a.routes()
	a.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

// HTTPFactory registers the HTTP adapter with an AdapterManager
func HTTPFactory(dm *data.DataManager, cfg HTTPConfig, logger *log.Logger) AdapterFactory {
	return func(am *AdapterManager) (AdapterInstance, error) {
		return NewHTTPAdapter(am, dm, cfg, logger)
	}
}

// GetType returns the adapter type
func (a *HTTPAdapter) GetType() string {
	return AdapterTypeHTTP
}

// Handler returns the complete middleware chain and routes
func (a *HTTPAdapter) Handler() http.Handler {
	return a.handler
}

// AdapterStart listens on the configured address and serves until ctx is cancelled
func (a *HTTPAdapter) AdapterStart(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Addr, err)
	}
	a.logger.Info(ctx, "HTTP adapter listening", log.Fields{"addr": ln.Addr().String()})

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.AdapterStop(shutdownCtx)
	}
}

// AdapterStop gracefully shuts the server down
func (a *HTTPAdapter) AdapterStop(ctx context.Context) error {
	a.logger.Info(ctx, "HTTP adapter stopping", nil)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func (a *HTTPAdapter) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)

	mux.HandleFunc("POST /api/auth/register", a.handleRegister)
	mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	mux.HandleFunc("GET /api/me", a.handleMe)

	mux.HandleFunc("GET /api/portfolios", a.handlePortfolioList)
	mux.HandleFunc("POST /api/portfolios", a.handlePortfolioAdd)
	mux.HandleFunc("POST /api/portfolios/import", a.handlePortfolioImport)
	mux.HandleFunc("GET /api/portfolios/{id}", a.handlePortfolioGet)
	mux.HandleFunc("PUT /api/portfolios/{id}", a.handlePortfolioUpdate)
	mux.HandleFunc("DELETE /api/portfolios/{id}", a.handlePortfolioDelete)
	mux.HandleFunc("GET /api/portfolios/{id}/tree", a.handlePortfolioTree)
	mux.HandleFunc("GET /api/portfolios/{id}/export", a.handlePortfolioExport)
	mux.HandleFunc("GET /api/portfolios/{id}/search", a.handleNodeFind)

	mux.HandleFunc("POST /api/portfolios/{id}/nodes", a.handleNodeAdd)
	mux.HandleFunc("POST /api/portfolios/{id}/reorder", a.handleNodeReorder)
	mux.HandleFunc("GET /api/portfolios/{id}/nodes/{nodeID}", a.handleNodeGet)
	mux.HandleFunc("PUT /api/portfolios/{id}/nodes/{nodeID}", a.handleNodeUpdate)
	mux.HandleFunc("DELETE /api/portfolios/{id}/nodes/{nodeID}", a.handleNodeDelete)
	mux.HandleFunc("POST /api/portfolios/{id}/nodes/{nodeID}/move", a.handleNodeMove)
	mux.HandleFunc("POST /api/portfolios/{id}/nodes/{nodeID}/visibility", a.handleNodeVisibility)

	mux.HandleFunc("GET /api/portfolios/{id}/assets", a.handleAssetList)
	mux.HandleFunc("POST /api/portfolios/{id}/assets", a.handleAssetAdd)
	mux.HandleFunc("GET /api/portfolios/{id}/assets/{assetID}", a.handleAssetGet)
	mux.HandleFunc("DELETE /api/portfolios/{id}/assets/{assetID}", a.handleAssetDelete)

	mux.HandleFunc("GET /api/public/portfolios", a.handlePublicList)
	mux.HandleFunc("GET /api/public/portfolios/{id}/tree", a.handlePublicTree)

	c := cors.New(cors.Options{
		AllowedOrigins: a.config.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	return c.Handler(a.logRequests(gzhttp.GzipHandler(a.withSession(mux))))
}

type ctxKey struct{}

// withSession attaches the session named by the cookie, if any, to the request context.
// Bad or stale cookies leave the request anonymous.
func (a *HTTPAdapter) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err == nil {
			sessionID, err := session.TokenValidate(cookie.Value, a.config.Secret)
			if err != nil {
				a.logger.Debug(r.Context(), "Ignoring invalid session cookie", log.Fields{"error": err})
			} else if s, ok := a.adapterManager.SessionGet(sessionID); ok {
				s.Touch()
				r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, s))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(ctxKey{}).(*session.Session)
	return s
}

// userFrom returns the logged in user or nil for anonymous requests
func userFrom(r *http.Request) *model.User {
	if s := sessionFrom(r); s != nil {
		return s.User()
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (a *HTTPAdapter) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		a.logger.Info(r.Context(), "HTTP request", log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"bytes":      rec.bytes,
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, model.ErrExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *HTTPAdapter) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error(r.Context(), "Request failed", log.Fields{"method": r.Method, "path": r.URL.Path, "error": err})
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return fmt.Errorf("%w: invalid request body: %v", model.ErrInvalidInput, err)
	}
	return nil
}

func portfolioID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid portfolio id %q", model.ErrInvalidInput, r.PathValue("id"))
	}
	return id, nil
}

// requireUser returns the logged in user or writes a 401
func (a *HTTPAdapter) requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user := userFrom(r)
	if user == nil {
		a.writeError(w, r, fmt.Errorf("login required: %w", model.ErrUnauthenticated))
		return nil, false
	}
	return user, true
}

func (a *HTTPAdapter) setSessionCookie(w http.ResponseWriter, sessionID string) error {
	token, err := session.TokenIssue(sessionID, a.config.SessionTTL, a.config.Secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.config.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *HTTPAdapter) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
