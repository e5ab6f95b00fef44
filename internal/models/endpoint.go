package models

// Language identifies the guest language of an endpoint handler.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
)

// ValidLanguage reports whether l names a supported guest language.
func ValidLanguage(l Language) bool {
	return l == LanguageJavaScript || l == LanguagePython
}

// EndpointModel stores a dynamic handler exposed at a unique URL path.
type EndpointModel struct {
	Base
	Path       string    `json:"path"       gorm:"uniqueIndex;not null"`
	Parameters ParamList `json:"parameters" gorm:"type:text"`
	Code       string    `json:"code"       gorm:"type:longtext"`
	Language   Language  `json:"language"   gorm:"default:javascript"`
	HTTPMethod string    `json:"httpMethod" gorm:"column:http_method;default:GET"`
	ProjectID  string    `json:"projectId"  gorm:"index;not null"`
	UserID     string    `json:"userId"     gorm:"index;not null"`
}

func (EndpointModel) TableName() string { return "endpoints" }
