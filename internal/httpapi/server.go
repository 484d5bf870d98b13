package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/arkohut/screenmemory/internal/logging"
	"github.com/arkohut/screenmemory/internal/search"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the Catalog Store and hybrid search as a thin CRUD
// HTTP surface.
type Server struct {
	echo     *echo.Echo
	store    *catalog.Store
	searcher *search.Searcher
	log      *logging.Logger
	metrics  *metrics
}

// NewServer builds a Server wired to store and searcher.
func NewServer(store *catalog.Store, searcher *search.Searcher, log *logging.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	m := newMetrics()

	s := &Server{
		echo:     e,
		store:    store,
		searcher: searcher,
		log:      log,
		metrics:  m,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(m.middleware())
	e.Use(s.accessLogMiddleware())
	e.HTTPErrorHandler = s.errorHandler

	s.registerRoutes()
	return s
}

func (s *Server) accessLogMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.log.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	s.echo.GET("/libraries", s.handleListLibraries)
	s.echo.POST("/libraries", s.handleCreateLibrary)
	s.echo.GET("/libraries/:id", s.handleGetLibrary)
	s.echo.DELETE("/libraries/:id", s.handleDeleteLibrary)
	s.echo.POST("/libraries/:id/folders", s.handleAddFolder)
	s.echo.POST("/libraries/:id/plugins", s.handleActivatePlugin)
	s.echo.DELETE("/folders/:id", s.handleRemoveFolder)

	s.echo.GET("/entities", s.handleListEntities)
	s.echo.GET("/entities/:id", s.handleGetEntity)
	s.echo.POST("/entities/batch", s.handleBatchEntities)

	s.echo.POST("/plugins", s.handleRegisterPlugin)

	s.echo.GET("/search", s.handleSearch)
}

// Start starts the HTTP server on host:port, blocking until it stops.
func (s *Server) Start(host string, port int) error {
	return s.echo.Start(fmt.Sprintf("%s:%d", host, port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) errorHandler(err error, c echo.Context) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]any{"error": he.Message})
		return
	}
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		_ = c.JSON(http.StatusNotFound, map[string]any{"error": "not found"})
	case errors.Is(err, catalog.ErrConflict):
		_ = c.JSON(http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, catalog.ErrValidation):
		_ = c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	default:
		s.log.Error(c.Request().Context(), "http: unhandled error", zap.Error(err))
		_ = c.JSON(http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// --- libraries ---

type createLibraryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateLibrary(c echo.Context) error {
	var req createLibraryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	lib, err := s.store.CreateLibrary(c.Request().Context(), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, lib)
}

func (s *Server) handleListLibraries(c echo.Context) error {
	libs, err := s.store.ListLibraries(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, libs)
}

func (s *Server) handleGetLibrary(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	lib, err := s.store.GetLibrary(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lib)
}

func (s *Server) handleDeleteLibrary(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.store.DeleteLibrary(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type addFolderRequest struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

func (s *Server) handleAddFolder(c echo.Context) error {
	libID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req addFolderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	folder, err := s.store.AddFolder(c.Request().Context(), libID, req.Path, req.Type)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, folder)
}

func (s *Server) handleRemoveFolder(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.store.RemoveFolder(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- plugins ---

func (s *Server) handleRegisterPlugin(c echo.Context) error {
	var p catalog.Plugin
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	registered, err := s.store.RegisterPlugin(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, registered)
}

type activatePluginRequest struct {
	PluginID int64 `json:"plugin_id"`
}

func (s *Server) handleActivatePlugin(c echo.Context) error {
	libID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req activatePluginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.store.ActivatePlugin(c.Request().Context(), libID, req.PluginID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- entities ---

func (s *Server) handleListEntities(c echo.Context) error {
	f, limit, offset, err := parseFilters(c)
	if err != nil {
		return err
	}
	entities, err := s.store.ListEntities(c.Request().Context(), f, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entities)
}

func (s *Server) handleGetEntity(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	e, err := s.store.GetEntity(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

type batchEntitiesRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleBatchEntities(c echo.Context) error {
	var req batchEntitiesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	entities := make([]catalog.Entity, 0, len(req.IDs))
	for _, id := range req.IDs {
		e, err := s.store.GetEntity(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		entities = append(entities, *e)
	}
	return c.JSON(http.StatusOK, entities)
}

// --- search ---

func (s *Server) handleSearch(c echo.Context) error {
	f, limit, _, err := parseFilters(c)
	if err != nil {
		return err
	}
	query := c.QueryParam("q")

	start := time.Now()
	entities, err := s.searcher.Hybrid(c.Request().Context(), query, f, limit)
	s.metrics.searchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entities)
}

func parseID(c echo.Context, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s", param))
	}
	return id, nil
}

func parseFilters(c echo.Context) (catalog.Filters, int, int, error) {
	var f catalog.Filters
	if raw := c.QueryParam("library_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return f, 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid library_ids")
			}
			f.LibraryIDs = append(f.LibraryIDs, id)
		}
	}
	if raw := c.QueryParam("start"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid start")
		}
		f.StartUnix = &v
	}
	if raw := c.QueryParam("end"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid end")
		}
		f.EndUnix = &v
	}
	limit := search.DefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return f, 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = v
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		offset = v
	}
	return f, limit, offset, nil
}
