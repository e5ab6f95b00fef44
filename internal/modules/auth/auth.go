package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/routeforge/core/internal/middleware"
	"github.com/routeforge/core/internal/models"
	jwtpkg "github.com/routeforge/core/internal/pkg/jwt"
	"github.com/routeforge/core/internal/pkg/response"
	"github.com/routeforge/core/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 30 * 24 * time.Hour

type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=3"`
	Email    string `json:"email"    binding:"omitempty,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

type loginResponse struct {
	Token string        `json:"token"`
	User  *userResponse `json:"user"`
}

func toResponse(u *models.UserModel) *userResponse {
	out := &userResponse{ID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
	if u.Email != nil {
		out.Email = *u.Email
	}
	return out
}

type Service struct {
	store  *store.Store
	logger *zap.Logger
}

func NewService(st *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// Register creates a user. The first registered user becomes the admin.
func (s *Service) Register(dto *RegisterDTO) (*models.UserModel, error) {
	existing, err := s.store.GetUserByUsername(dto.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountUsers()
	if err != nil {
		return nil, err
	}

	u := models.UserModel{
		Username: strings.TrimSpace(dto.Username),
		Password: string(hash),
		IsAdmin:  count == 0,
	}
	if email := strings.TrimSpace(dto.Email); email != "" {
		u.Email = &email
	}
	if err := s.store.CreateUser(&u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("email already registered")
		}
		return nil, err
	}
	return &u, nil
}

// Login verifies credentials and issues a signed token.
func (s *Service) Login(username, password, ip string) (string, *models.UserModel, error) {
	u, err := s.store.GetUserByUsername(username)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("invalid credentials")
	}

	now := time.Now()
	s.store.DB().Model(u).Updates(map[string]interface{}{
		"last_login_time": now,
		"last_login_ip":   ip,
	})
	u.LastLoginTime = &now
	u.LastLoginIP = ip

	token, err := jwtpkg.Sign(u.ID, tokenTTL)
	return token, u, err
}

// EnsureAdmin creates the configured admin account if it does not exist yet.
// Called on startup so env-only deployments get a usable login.
func (s *Service) EnsureAdmin(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}
	existing, err := s.store.GetUserByUsername(username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := models.UserModel{Username: username, Password: string(hash), IsAdmin: true}
	if err := s.store.CreateUser(&u); err != nil {
		return err
	}
	s.logger.Info("admin account bootstrapped", zap.String("username", username))
	return nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/auth")

	g.POST("/register", h.register)
	g.POST("/login", h.login)

	a := g.Group("", authMW)
	a.GET("/me", h.me)
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.Register(&dto)
	if err != nil {
		if err.Error() == "username already taken" || err.Error() == "email already registered" {
			response.Conflict(c, err.Error())
			return
		}
		h.svc.logger.Error("register failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.Created(c, toResponse(u))
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, u, err := h.svc.Login(dto.Username, dto.Password, c.ClientIP())
	if err != nil {
		if err.Error() == "invalid credentials" {
			response.Unauthorized(c)
			return
		}
		h.svc.logger.Error("login failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	response.OK(c, loginResponse{Token: token, User: toResponse(u)})
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.svc.store.GetUserByID(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c)
		return
	}
	if u == nil {
		response.Unauthorized(c)
		return
	}
	response.OK(c, toResponse(u))
}
