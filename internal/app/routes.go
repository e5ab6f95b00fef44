package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/routeforge/core/internal/middleware"
	"github.com/routeforge/core/internal/modules/auth"
	"github.com/routeforge/core/internal/modules/debug"
	"github.com/routeforge/core/internal/modules/dispatch"
	"github.com/routeforge/core/internal/modules/endpoint"
	"github.com/routeforge/core/internal/modules/page"
	"github.com/routeforge/core/internal/modules/project"
	"github.com/routeforge/core/internal/pkg/generator"
	"github.com/routeforge/core/internal/pkg/response"
	"go.uber.org/zap"
)

var processStart = time.Now()

// registerRoutes wires the static CRUD surface and installs the catch-all
// dispatcher for everything else.
func (a *App) registerRoutes(gen generator.Generator) {
	authMW := middleware.Auth()

	authSvc := auth.NewService(a.store, a.logger)
	if err := authSvc.EnsureAdmin(a.cfg.AdminUsername, a.cfg.AdminPassword); err != nil {
		a.logger.Warn("admin bootstrap failed", zap.Error(err))
	}

	projectSvc := project.NewService(a.store, a.registry, a.cfg.ShouldCascadeDelete(), a.logger)
	endpointSvc := endpoint.NewService(a.store, a.registry, gen, a.logger)
	pageSvc := page.NewService(a.store, a.registry, a.logger)

	api := a.router.Group("/api")

	api.GET("/ping", func(c *gin.Context) {
		response.OK(c, gin.H{"pong": true})
	})
	api.GET("/info", func(c *gin.Context) {
		response.OK(c, gin.H{
			"name":   "routeforge-core",
			"env":    a.cfg.Env,
			"uptime": time.Since(processStart).Round(time.Second).String(),
		})
	})

	auth.NewHandler(authSvc).RegisterRoutes(api, authMW)
	project.NewHandler(projectSvc).RegisterRoutes(api, authMW)
	endpoint.NewHandler(endpointSvc).RegisterRoutes(api, authMW)
	page.NewHandler(pageSvc).RegisterRoutes(api, authMW)
	debug.NewHandler(a.store, a.registry, a.logger).RegisterRoutes(api, authMW)

	dispatcher := dispatch.NewHandler(a.store, a.registry, a.cfg.HandlerTimeout, a.logger)
	a.router.NoRoute(dispatcher.Handle)
}
