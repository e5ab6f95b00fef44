package project

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/routeforge/core/internal/middleware"
	"github.com/routeforge/core/internal/models"
	"github.com/routeforge/core/internal/pkg/response"
	"github.com/routeforge/core/internal/registry"
	"github.com/routeforge/core/internal/store"
	"go.uber.org/zap"
)

type CreateProjectDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateProjectDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Service owns project lifecycle, including the optional cascade that removes
// a deleted project's endpoints and pages from both store and registry.
type Service struct {
	store    *store.Store
	registry *registry.Registry
	cascade  bool
	logger   *zap.Logger
}

func NewService(st *store.Store, reg *registry.Registry, cascade bool, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, registry: reg, cascade: cascade, logger: logger}
}

// Delete removes the project and, when cascade is enabled, every endpoint and
// page it owns. Store rows go first; registry cleanup follows and is best
// effort, the registry reconciles on next refresh or restart.
func (s *Service) Delete(id, ownerID string) (bool, error) {
	var orphanPaths []string
	if s.cascade {
		endpoints, err := s.store.ListEndpointsByProject(id)
		if err != nil {
			return false, err
		}
		pages, err := s.store.ListPagesByProject(id)
		if err != nil {
			return false, err
		}
		for _, ep := range endpoints {
			if _, err := s.store.DeleteEndpoint(ep.ID, ownerID); err != nil {
				return false, err
			}
			orphanPaths = append(orphanPaths, ep.Path)
		}
		for _, page := range pages {
			if _, err := s.store.DeletePage(page.ID, ownerID); err != nil {
				return false, err
			}
			orphanPaths = append(orphanPaths, page.Path)
		}
	}

	matched, err := s.store.DeleteProject(id, ownerID)
	if err != nil {
		return false, err
	}
	if matched {
		for _, path := range orphanPaths {
			s.registry.Unregister(path)
		}
	}
	return matched, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/projects", authMW)

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateProjectDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(dto.Name) == "" {
		response.BadRequest(c, "Project name is required")
		return
	}

	p, err := h.svc.store.CreateProject(middleware.CurrentUserID(c), strings.TrimSpace(dto.Name), dto.Description)
	if err != nil {
		h.svc.logger.Error("create project failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.Created(c, p)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.store.ListProjects(middleware.CurrentUserID(c))
	if err != nil {
		h.svc.logger.Error("list projects failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if items == nil {
		items = []models.ProjectModel{}
	}
	response.OK(c, items)
}

// ownedProject resolves the :id param to a project owned by the caller,
// writing 404/403 itself when that fails.
func (h *Handler) ownedProject(c *gin.Context) *models.ProjectModel {
	p, err := h.svc.store.GetProject(c.Param("id"))
	if err != nil {
		h.svc.logger.Error("get project failed", zap.Error(err))
		response.InternalError(c)
		return nil
	}
	if p == nil {
		response.NotFoundMsg(c, "Project not found")
		return nil
	}
	if p.UserID != middleware.CurrentUserID(c) {
		response.Forbidden(c)
		return nil
	}
	return p
}

func (h *Handler) get(c *gin.Context) {
	p := h.ownedProject(c)
	if p == nil {
		return
	}
	response.OK(c, p)
}

func (h *Handler) update(c *gin.Context) {
	p := h.ownedProject(c)
	if p == nil {
		return
	}

	var dto UpdateProjectDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if dto.Name != nil {
		if strings.TrimSpace(*dto.Name) == "" {
			response.BadRequest(c, "Project name cannot be empty")
			return
		}
		updates["name"] = strings.TrimSpace(*dto.Name)
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if len(updates) == 0 {
		response.BadRequest(c, "No fields to update")
		return
	}

	matched, err := h.svc.store.UpdateProject(p.ID, middleware.CurrentUserID(c), updates)
	if err != nil {
		h.svc.logger.Error("update project failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if !matched {
		response.NotFoundMsg(c, "Project not found")
		return
	}

	updated, err := h.svc.store.GetProject(p.ID)
	if err != nil || updated == nil {
		response.Message(c, "Project updated successfully")
		return
	}
	response.OK(c, updated)
}

func (h *Handler) delete(c *gin.Context) {
	p := h.ownedProject(c)
	if p == nil {
		return
	}

	matched, err := h.svc.Delete(p.ID, middleware.CurrentUserID(c))
	if err != nil {
		h.svc.logger.Error("delete project failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if !matched {
		response.NotFoundMsg(c, "Project not found")
		return
	}
	response.Message(c, "Project deleted successfully")
}
