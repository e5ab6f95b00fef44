package models

// PageModel stores an HTML document served verbatim at a unique URL path.
type PageModel struct {
	Base
	Path        string `json:"path"        gorm:"uniqueIndex;not null"`
	HTMLContent string `json:"htmlContent" gorm:"column:html_content;type:longtext"`
	ProjectID   string `json:"projectId"   gorm:"index;not null"`
	UserID      string `json:"userId"      gorm:"index;not null"`
}

func (PageModel) TableName() string { return "pages" }
