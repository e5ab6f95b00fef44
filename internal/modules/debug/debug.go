package debug

import (
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/routeforge/core/internal/middleware"
	"github.com/routeforge/core/internal/pkg/response"
	"github.com/routeforge/core/internal/registry"
	"github.com/routeforge/core/internal/store"
	"go.uber.org/zap"
)

type routeEntry struct {
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	HTTPMethod string `json:"httpMethod,omitempty"`
	Language   string `json:"language,omitempty"`
	Stub       bool   `json:"stub,omitempty"`
}

type Handler struct {
	store    *store.Store
	registry *registry.Registry
	logger   *zap.Logger
}

func NewHandler(st *store.Store, reg *registry.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, registry: reg, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/debug", authMW)

	g.GET("/routes", h.listRoutes)
}

// listRoutes dumps the live registry. Admin only: this exposes every owner's
// paths at once.
func (h *Handler) listRoutes(c *gin.Context) {
	u, err := h.store.GetUserByID(middleware.CurrentUserID(c))
	if err != nil {
		h.logger.Error("get user failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if u == nil || !u.IsAdmin {
		response.Forbidden(c)
		return
	}

	if err := h.registry.EnsureInitialized(c.Request.Context()); err != nil {
		h.logger.Error("registry init failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	paths := h.registry.Paths()
	sort.Strings(paths)

	routes := make([]routeEntry, 0, len(paths))
	for _, path := range paths {
		info, ok := h.registry.Lookup(path)
		if !ok {
			continue
		}
		entry := routeEntry{Path: path, Kind: "page"}
		if info.Kind == registry.KindEndpoint {
			entry.Kind = "endpoint"
			entry.HTTPMethod = info.HTTPMethod
			entry.Language = string(info.Language)
			if info.Handler != nil {
				_, entry.Stub = info.Handler.Stub()
			}
		}
		routes = append(routes, entry)
	}

	response.OK(c, gin.H{"routes": routes, "count": len(routes)})
}
