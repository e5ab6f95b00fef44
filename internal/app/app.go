package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/routeforge/core/internal/config"
	"github.com/routeforge/core/internal/database"
	"github.com/routeforge/core/internal/middleware"
	"github.com/routeforge/core/internal/pkg/generator"
	jwtpkg "github.com/routeforge/core/internal/pkg/jwt"
	pkgredis "github.com/routeforge/core/internal/pkg/redis"
	"github.com/routeforge/core/internal/registry"
	"github.com/routeforge/core/internal/sandbox"
	"github.com/routeforge/core/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	store    *store.Store
	registry *registry.Registry
	logger   *zap.Logger
}

// New initializes the application: config → DB → sandbox host → registry → routes.
func New(logger *zap.Logger, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required (DATABASE_DSN or config file)")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	jwtpkg.SetSecret(cfg.SessionSecret)

	st := store.New(db)
	host := sandbox.NewHost(cfg.HandlerTimeout, logger)
	reg := registry.New(st, host, logger)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc:  func(origin string) bool { return true },
	}
	router.Use(cors.New(corsConfig))

	// OptionalAuth runs on every request so the rate limiter can distinguish
	// authenticated callers; protected groups still enforce Auth themselves.
	router.Use(middleware.OptionalAuth())
	if cfg.RedisURL != "" {
		rc, err := pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			router.Use(middleware.RateLimit(rc.Raw()))
		}
	}

	var gen generator.Generator
	if cfg.GeneratorAPIKey != "" {
		gen = generator.NewAnthropic(cfg.GeneratorAPIKey, "", cfg.GeneratorModel)
	}

	app := &App{cfg: cfg, router: router, db: db, store: st, registry: reg, logger: logger}
	app.registerRoutes(gen)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }
