package page

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/routeforge/core/internal/middleware"
	"github.com/routeforge/core/internal/models"
	"github.com/routeforge/core/internal/pkg/response"
	"github.com/routeforge/core/internal/pkg/routepath"
	"github.com/routeforge/core/internal/registry"
	"github.com/routeforge/core/internal/store"
	"go.uber.org/zap"
)

type CreatePageDTO struct {
	Path        string `json:"path"`
	HTMLContent string `json:"htmlContent"`
	ProjectID   string `json:"projectId"`
}

type UpdatePageDTO struct {
	Path        *string `json:"path"`
	HTMLContent *string `json:"htmlContent"`
}

// Service keeps page rows and their registry entries in sync, mirroring the
// endpoint facade without the sandbox hop.
type Service struct {
	store    *store.Store
	registry *registry.Registry
	logger   *zap.Logger
}

func NewService(st *store.Store, reg *registry.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, registry: reg, logger: logger}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/pages", authMW)

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(dto.Path) == "" || strings.TrimSpace(dto.ProjectID) == "" {
		response.BadRequest(c, "path and projectId are required")
		return
	}
	if dto.HTMLContent == "" {
		response.BadRequest(c, "htmlContent is required")
		return
	}
	if routepath.UnderAPI(dto.Path) {
		response.BadRequest(c, "Pages may not live under /api/")
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

	page := models.PageModel{
		Path:        routepath.ComposePage(project.NameSlug(), dto.Path),
		HTMLContent: dto.HTMLContent,
		ProjectID:   project.ID,
		UserID:      ownerID,
	}
	if err := h.svc.store.CreatePage(&page); err != nil {
		if errors.Is(err, store.ErrPathConflict) {
			response.Conflict(c, "A page with this path already exists")
			return
		}
		h.svc.logger.Error("create page failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	h.svc.registry.RegisterPage(page.Path, page.HTMLContent)
	response.Created(c, page)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.store.ListPagesByOwner(middleware.CurrentUserID(c))
	if err != nil {
		h.svc.logger.Error("list pages failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if items == nil {
		items = []store.PageRow{}
	}
	response.OK(c, items)
}

func (h *Handler) ownedPage(c *gin.Context) *models.PageModel {
	page, err := h.svc.store.GetPageByID(c.Param("id"))
	if err != nil {
		h.svc.logger.Error("get page failed", zap.Error(err))
		response.InternalError(c)
		return nil
	}
	if page == nil {
		response.NotFoundMsg(c, "Page not found")
		return nil
	}
	if page.UserID != middleware.CurrentUserID(c) {
		response.Forbidden(c)
		return nil
	}
	return page
}

func (h *Handler) get(c *gin.Context) {
	page := h.ownedPage(c)
	if page == nil {
		return
	}
	response.OK(c, page)
}

func (h *Handler) update(c *gin.Context) {
	page := h.ownedPage(c)
	if page == nil {
		return
	}

	var dto UpdatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	newPath := page.Path

	if dto.Path != nil {
		if strings.TrimSpace(*dto.Path) == "" {
			response.BadRequest(c, "path cannot be empty")
			return
		}
		if routepath.UnderAPI(*dto.Path) {
			response.BadRequest(c, "Pages may not live under /api/")
			return
		}
		composed, ok := h.composePath(c, page, *dto.Path)
		if !ok {
			return
		}
		if composed != page.Path {
			updates["path"] = composed
			newPath = composed
		}
	}
	if dto.HTMLContent != nil {
		if *dto.HTMLContent == "" {
			response.BadRequest(c, "htmlContent cannot be empty")
			return
		}
		updates["html_content"] = *dto.HTMLContent
	}
	if len(updates) == 0 {
		response.BadRequest(c, "No fields to update")
		return
	}

	matched, err := h.svc.store.UpdatePage(page.ID, middleware.CurrentUserID(c), updates)
	if err != nil {
		if errors.Is(err, store.ErrPathConflict) {
			response.Conflict(c, "A page with this path already exists")
			return
		}
		h.svc.logger.Error("update page failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if !matched {
		response.NotFoundMsg(c, "Page not found")
		return
	}

	if newPath != page.Path {
		h.svc.registry.Unregister(page.Path)
	}
	if err := h.svc.registry.RefreshPage(newPath); err != nil {
		h.svc.logger.Warn("page registry refresh failed",
			zap.String("path", newPath), zap.Error(err))
	}
	response.Message(c, "Page updated successfully")
}

func (h *Handler) composePath(c *gin.Context, page *models.PageModel, userPath string) (string, bool) {
	project, err := h.svc.store.GetProject(page.ProjectID)
	if err != nil {
		h.svc.logger.Error("get project failed", zap.Error(err))
		response.InternalError(c)
		return "", false
	}
	if project != nil {
		return routepath.ComposePage(project.NameSlug(), userPath), true
	}
	// Orphaned page: no slug left to re-derive, take the path as given.
	return routepath.Normalize(userPath), true
}

func (h *Handler) delete(c *gin.Context) {
	page := h.ownedPage(c)
	if page == nil {
		return
	}

	matched, err := h.svc.store.DeletePage(page.ID, middleware.CurrentUserID(c))
	if err != nil {
		h.svc.logger.Error("delete page failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if !matched {
		response.NotFoundMsg(c, "Page not found")
		return
	}

	h.svc.registry.Unregister(page.Path)
	response.Message(c, "Page deleted successfully")
}
