package models

import (
	"regexp"
	"strings"
)

// ProjectModel is a naming namespace that groups endpoints and pages under one owner.
type ProjectModel struct {
	Base
	Name        string `json:"name"        gorm:"not null"`
	Description string `json:"description"`
	UserID      string `json:"user_id"     gorm:"index;not null"`
}

func (ProjectModel) TableName() string { return "projects" }

var slugSpaceRe = regexp.MustCompile(`\s+`)

// Slugify lowercases a name and collapses runs of whitespace to single dashes.
func Slugify(name string) string {
	return slugSpaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// NameSlug returns the project's URL namespace segment.
func (p *ProjectModel) NameSlug() string { return Slugify(p.Name) }
