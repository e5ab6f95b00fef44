// Package dispatch serves every path the static router does not claim: it
// resolves the request against the route registry and either invokes the
// stored handler in its sandbox or returns the stored HTML.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/routeforge/core/internal/middleware"
	"github.com/routeforge/core/internal/pkg/response"
	"github.com/routeforge/core/internal/pkg/routepath"
	"github.com/routeforge/core/internal/registry"
	"github.com/routeforge/core/internal/sandbox"
	"github.com/routeforge/core/internal/store"
	"go.uber.org/zap"
)

const htmlContentType = "text/html; charset=utf-8"

type Handler struct {
	store    *store.Store
	registry *registry.Registry
	timeout  time.Duration
	logger   *zap.Logger
}

func NewHandler(st *store.Store, reg *registry.Registry, timeout time.Duration, logger *zap.Logger) *Handler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, registry: reg, timeout: timeout, logger: logger}
}

// Handle is the catch-all entry point, installed as the router's NoRoute
// handler so reserved system routes always win.
func (h *Handler) Handle(c *gin.Context) {
	if err := h.registry.EnsureInitialized(c.Request.Context()); err != nil {
		h.logger.Error("registry init failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	path := routepath.Canonical(c.Request.URL.Path)

	if info, ok := h.registry.Lookup(path); ok {
		switch info.Kind {
		case registry.KindPage:
			c.Set(middleware.ContextKeyRouteKind, "page")
			c.Data(http.StatusOK, htmlContentType, []byte(info.HTMLContent))
			return
		case registry.KindEndpoint:
			if methodMatches(c.Request.Method, info.HTTPMethod) {
				c.Set(middleware.ContextKeyRouteKind, "endpoint")
				h.invoke(c, info)
				return
			}
		}
	}

	// A page written after this process hydrated may not be in memory yet.
	page, err := h.store.GetPageByPath(path)
	if err != nil {
		h.logger.Error("page fallback query failed", zap.String("path", path), zap.Error(err))
		response.InternalError(c)
		return
	}
	if page != nil {
		c.Set(middleware.ContextKeyRouteKind, "page")
		c.Data(http.StatusOK, htmlContentType, []byte(page.HTMLContent))
		return
	}

	response.NotFound(c)
}

func methodMatches(requestMethod, endpointMethod string) bool {
	m := strings.ToUpper(strings.TrimSpace(endpointMethod))
	if m == "" {
		m = http.MethodGet
	}
	return requestMethod == m
}

func (h *Handler) invoke(c *gin.Context, info *registry.RouteInfo) {
	params, ok := h.buildParams(c, info)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := info.Handler.Invoke(ctx, params)
	if err != nil {
		var execErr *sandbox.ExecError
		if errors.As(err, &execErr) && execErr.Timeout {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"error": "Endpoint timed out",
			})
			return
		}
		h.logger.Warn("endpoint execution failed",
			zap.String("path", info.Path), zap.Error(err))
		response.ExecError(c, http.StatusInternalServerError, "Error executing endpoint", err.Error())
		return
	}

	c.JSON(http.StatusOK, result)
}

// buildParams assembles the guest parameter dictionary. GET pulls the declared
// names from the query string; POST takes the JSON body wholesale.
func (h *Handler) buildParams(c *gin.Context, info *registry.RouteInfo) (map[string]interface{}, bool) {
	params := map[string]interface{}{}

	if c.Request.Method == http.MethodPost {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "Invalid JSON body")
			return nil, false
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &params); err != nil {
				response.BadRequest(c, "Invalid JSON body")
				return nil, false
			}
		}
		return params, true
	}

	query := c.Request.URL.Query()
	for _, name := range info.Parameters {
		if query.Has(name) {
			params[name] = query.Get(name)
		} else {
			params[name] = nil
		}
	}
	return params, true
}
