package endpoint

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/routeforge/core/internal/middleware"
	"github.com/routeforge/core/internal/models"
	"github.com/routeforge/core/internal/pkg/generator"
	"github.com/routeforge/core/internal/pkg/response"
	"github.com/routeforge/core/internal/pkg/routepath"
	"github.com/routeforge/core/internal/registry"
	"github.com/routeforge/core/internal/store"
	"go.uber.org/zap"
)

type CreateEndpointDTO struct {
	Path       string   `json:"path"`
	Code       string   `json:"code"`
	Parameters []string `json:"parameters"`
	HTTPMethod string   `json:"httpMethod"`
	Language   string   `json:"language"`
	ProjectID  string   `json:"projectId"`
}

type UpdateEndpointDTO struct {
	Path       *string   `json:"path"`
	Code       *string   `json:"code"`
	Parameters *[]string `json:"parameters"`
	HTTPMethod *string   `json:"httpMethod"`
	Language   *string   `json:"language"`
}

// Service keeps endpoint rows and their registry entries in sync. Store writes
// happen first; a failed registry call is logged and repaired by the next
// refresh or restart rather than rolled back.
type Service struct {
	store    *store.Store
	registry *registry.Registry
	gen      generator.Generator
	logger   *zap.Logger
}

func NewService(st *store.Store, reg *registry.Registry, gen generator.Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, registry: reg, gen: gen, logger: logger}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/endpoints", authMW)

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/generate", h.generate)
}

func normalizeMethod(raw string) (string, bool) {
	m := strings.ToUpper(strings.TrimSpace(raw))
	if m == "" {
		m = "GET"
	}
	return m, m == "GET" || m == "POST"
}

func normalizeLanguage(raw string) (models.Language, bool) {
	l := models.Language(strings.ToLower(strings.TrimSpace(raw)))
	if l == "" {
		l = models.LanguageJavaScript
	}
	return l, models.ValidLanguage(l)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateEndpointDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(dto.Path) == "" || strings.TrimSpace(dto.Code) == "" || strings.TrimSpace(dto.ProjectID) == "" {
		response.BadRequest(c, "path, code and projectId are required")
		return
	}
	method, ok := normalizeMethod(dto.HTTPMethod)
	if !ok {
		response.BadRequest(c, "httpMethod must be GET or POST")
		return
	}
	language, ok := normalizeLanguage(dto.Language)
	if !ok {
		response.BadRequest(c, "language must be javascript or python")
		return
	}

	ownerID := middleware.CurrentUserID(c)
	project, err := h.svc.store.GetProject(dto.ProjectID)
	if err != nil {
		h.svc.logger.Error("get project failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if project == nil {
		response.NotFoundMsg(c, "Project not found")
		return
	}
	if project.UserID != ownerID {
		response.Forbidden(c)
		return
	}

	fullPath := routepath.ComposeEndpoint(project.NameSlug(), dto.Path)
	if routepath.IsReserved(fullPath) {
		response.BadRequest(c, "Path conflicts with a reserved route")
		return
	}

	ep := models.EndpointModel{
		Path:       fullPath,
		Parameters: dto.Parameters,
		Code:       dto.Code,
		Language:   language,
		HTTPMethod: method,
		ProjectID:  project.ID,
		UserID:     ownerID,
	}
	if err := h.svc.store.CreateEndpoint(&ep); err != nil {
		if errors.Is(err, store.ErrPathConflict) {
			response.Conflict(c, "An endpoint with this path already exists")
			return
		}
		h.svc.logger.Error("create endpoint failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	h.svc.registry.RegisterEndpoint(ep.Path, ep.Parameters, ep.Code, ep.HTTPMethod, ep.Language)
	response.Created(c, ep)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.store.ListEndpointsByOwner(middleware.CurrentUserID(c))
	if err != nil {
		h.svc.logger.Error("list endpoints failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if items == nil {
		items = []store.EndpointRow{}
	}
	response.OK(c, items)
}

// ownedEndpoint resolves the :id param to an endpoint owned by the caller,
// writing 404/403 itself when that fails.
func (h *Handler) ownedEndpoint(c *gin.Context) *models.EndpointModel {
	ep, err := h.svc.store.GetEndpointByID(c.Param("id"))
	if err != nil {
		h.svc.logger.Error("get endpoint failed", zap.Error(err))
		response.InternalError(c)
		return nil
	}
	if ep == nil {
		response.NotFoundMsg(c, "Endpoint not found")
		return nil
	}
	if ep.UserID != middleware.CurrentUserID(c) {
		response.Forbidden(c)
		return nil
	}
	return ep
}

func (h *Handler) get(c *gin.Context) {
	ep := h.ownedEndpoint(c)
	if ep == nil {
		return
	}
	response.OK(c, ep)
}

func (h *Handler) update(c *gin.Context) {
	ep := h.ownedEndpoint(c)
	if ep == nil {
		return
	}

	var dto UpdateEndpointDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	newPath := ep.Path

	if dto.Path != nil {
		composed, ok := h.composePath(c, ep, *dto.Path)
		if !ok {
			return
		}
		if composed != ep.Path {
			updates["path"] = composed
			newPath = composed
		}
	}
	if dto.Code != nil {
		updates["code"] = *dto.Code
	}
	if dto.Parameters != nil {
		updates["parameters"] = models.ParamList(*dto.Parameters)
	}
	if dto.HTTPMethod != nil {
		method, ok := normalizeMethod(*dto.HTTPMethod)
		if !ok {
			response.BadRequest(c, "httpMethod must be GET or POST")
			return
		}
		updates["http_method"] = method
	}
	if dto.Language != nil {
		language, ok := normalizeLanguage(*dto.Language)
		if !ok {
			response.BadRequest(c, "language must be javascript or python")
			return
		}
		updates["language"] = language
	}
	if len(updates) == 0 {
		response.BadRequest(c, "No fields to update")
		return
	}

	matched, err := h.svc.store.UpdateEndpoint(ep.ID, middleware.CurrentUserID(c), updates)
	if err != nil {
		if errors.Is(err, store.ErrPathConflict) {
			response.Conflict(c, "An endpoint with this path already exists")
			return
		}
		h.svc.logger.Error("update endpoint failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if !matched {
		response.NotFoundMsg(c, "Endpoint not found")
		return
	}

	if newPath != ep.Path {
		h.svc.registry.Unregister(ep.Path)
	}
	if err := h.svc.registry.RefreshEndpoint(newPath); err != nil {
		h.svc.logger.Warn("endpoint registry refresh failed",
			zap.String("path", newPath), zap.Error(err))
	}
	response.Message(c, "Endpoint updated successfully")
}

// composePath rebuilds the full endpoint path from a user-supplied fragment,
// writing the error response itself on validation failure.
func (h *Handler) composePath(c *gin.Context, ep *models.EndpointModel, userPath string) (string, bool) {
	if strings.TrimSpace(userPath) == "" {
		response.BadRequest(c, "path cannot be empty")
		return "", false
	}
	project, err := h.svc.store.GetProject(ep.ProjectID)
	if err != nil {
		h.svc.logger.Error("get project failed", zap.Error(err))
		response.InternalError(c)
		return "", false
	}

	var composed string
	if project != nil {
		composed = routepath.ComposeEndpoint(project.NameSlug(), userPath)
	} else {
		// Orphaned endpoint: keep the /api anchor but no slug to re-derive.
		composed = routepath.Normalize(userPath)
		if !strings.HasPrefix(composed, routepath.APIPrefix+"/") {
			composed = routepath.APIPrefix + composed
		}
	}
	if routepath.IsReserved(composed) {
		response.BadRequest(c, "Path conflicts with a reserved route")
		return "", false
	}
	return composed, true
}

func (h *Handler) delete(c *gin.Context) {
	ep := h.ownedEndpoint(c)
	if ep == nil {
		return
	}

	matched, err := h.svc.store.DeleteEndpoint(ep.ID, middleware.CurrentUserID(c))
	if err != nil {
		h.svc.logger.Error("delete endpoint failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if !matched {
		response.NotFoundMsg(c, "Endpoint not found")
		return
	}

	h.svc.registry.Unregister(ep.Path)
	response.Message(c, "Endpoint deleted successfully")
}
