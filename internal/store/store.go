package store

import (
	"errors"

	"github.com/routeforge/core/internal/models"
	"gorm.io/gorm"
)

// ErrPathConflict reports a uniqueness violation on an endpoint or page path.
var ErrPathConflict = errors.New("path already exists")

// Store is the single source of truth for projects, endpoints and pages.
// Row-level atomicity plus the unique index on path is all the consistency the
// callers rely on; cross-entity checks are separate queries by design.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *gorm.DB { return s.db }

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPathConflict
	}
	return err
}

// --- projects ---

func (s *Store) CreateProject(ownerID, name, description string) (*models.ProjectModel, error) {
	p := models.ProjectModel{Name: name, Description: description, UserID: ownerID}
	if err := s.db.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProject(id string) (*models.ProjectModel, error) {
	var p models.ProjectModel
	if err := s.db.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProjects(ownerID string) ([]models.ProjectModel, error) {
	var items []models.ProjectModel
	err := s.db.Where("user_id = ?", ownerID).Order("created_at DESC").Find(&items).Error
	return items, err
}

// UpdateProject applies the partial update and reports whether a row matched
// both id and owner.
func (s *Store) UpdateProject(id, ownerID string, updates map[string]interface{}) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	tx := s.db.Model(&models.ProjectModel{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(updates)
	return tx.RowsAffected > 0, tx.Error
}

func (s *Store) DeleteProject(id, ownerID string) (bool, error) {
	tx := s.db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.ProjectModel{})
	return tx.RowsAffected > 0, tx.Error
}

// --- endpoints ---

// EndpointRow is an endpoint plus optional display fields joined from the
// user and project tables. Pointers so partial rows never fail decoding.
type EndpointRow struct {
	models.EndpointModel
	UserEmail   *string `json:"userEmail,omitempty"   gorm:"->"`
	ProjectName *string `json:"projectName,omitempty" gorm:"->"`
}

func (s *Store) CreateEndpoint(ep *models.EndpointModel) error {
	return translate(s.db.Create(ep).Error)
}

func (s *Store) GetEndpointByID(id string) (*models.EndpointModel, error) {
	var ep models.EndpointModel
	if err := s.db.First(&ep, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ep, nil
}

func (s *Store) GetEndpointByPath(path string) (*models.EndpointModel, error) {
	var ep models.EndpointModel
	if err := s.db.First(&ep, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ep, nil
}

func (s *Store) ListEndpointsByOwner(ownerID string) ([]EndpointRow, error) {
	var items []EndpointRow
	err := s.db.Model(&models.EndpointModel{}).
		Select("endpoints.*, users.email AS user_email, projects.name AS project_name").
		Joins("LEFT JOIN users ON users.id = endpoints.user_id").
		Joins("LEFT JOIN projects ON projects.id = endpoints.project_id").
		Where("endpoints.user_id = ?", ownerID).
		Order("endpoints.created_at DESC").
		Find(&items).Error
	return items, err
}

func (s *Store) ListEndpointsByProject(projectID string) ([]models.EndpointModel, error) {
	var items []models.EndpointModel
	err := s.db.Where("project_id = ?", projectID).Find(&items).Error
	return items, err
}

func (s *Store) ListAllEndpoints() ([]models.EndpointModel, error) {
	var items []models.EndpointModel
	err := s.db.Find(&items).Error
	return items, err
}

func (s *Store) UpdateEndpoint(id, ownerID string, updates map[string]interface{}) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	tx := s.db.Model(&models.EndpointModel{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(updates)
	return tx.RowsAffected > 0, translate(tx.Error)
}

func (s *Store) DeleteEndpoint(id, ownerID string) (bool, error) {
	tx := s.db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.EndpointModel{})
	return tx.RowsAffected > 0, tx.Error
}

// --- pages ---

// PageRow mirrors EndpointRow for stored pages.
type PageRow struct {
	models.PageModel
	UserEmail   *string `json:"userEmail,omitempty"   gorm:"->"`
	ProjectName *string `json:"projectName,omitempty" gorm:"->"`
}

func (s *Store) CreatePage(page *models.PageModel) error {
	return translate(s.db.Create(page).Error)
}

func (s *Store) GetPageByID(id string) (*models.PageModel, error) {
	var page models.PageModel
	if err := s.db.First(&page, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &page, nil
}

func (s *Store) GetPageByPath(path string) (*models.PageModel, error) {
	var page models.PageModel
	if err := s.db.First(&page, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &page, nil
}

func (s *Store) ListPagesByOwner(ownerID string) ([]PageRow, error) {
	var items []PageRow
	err := s.db.Model(&models.PageModel{}).
		Select("pages.*, users.email AS user_email, projects.name AS project_name").
		Joins("LEFT JOIN users ON users.id = pages.user_id").
		Joins("LEFT JOIN projects ON projects.id = pages.project_id").
		Where("pages.user_id = ?", ownerID).
		Order("pages.created_at DESC").
		Find(&items).Error
	return items, err
}

func (s *Store) ListPagesByProject(projectID string) ([]models.PageModel, error) {
	var items []models.PageModel
	err := s.db.Where("project_id = ?", projectID).Find(&items).Error
	return items, err
}

func (s *Store) ListAllPages() ([]models.PageModel, error) {
	var items []models.PageModel
	err := s.db.Find(&items).Error
	return items, err
}

func (s *Store) UpdatePage(id, ownerID string, updates map[string]interface{}) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	tx := s.db.Model(&models.PageModel{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(updates)
	return tx.RowsAffected > 0, translate(tx.Error)
}

func (s *Store) DeletePage(id, ownerID string) (bool, error) {
	tx := s.db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.PageModel{})
	return tx.RowsAffected > 0, tx.Error
}

// --- users ---

func (s *Store) GetUserByUsername(username string) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.First(&u, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByID(id string) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(u *models.UserModel) error {
	return s.db.Create(u).Error
}

func (s *Store) CountUsers() (int64, error) {
	var n int64
	err := s.db.Model(&models.UserModel{}).Count(&n).Error
	return n, err
}
