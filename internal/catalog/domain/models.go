// Package domain contains persistence models and contracts for the
// template catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TemplateType distinguishes static downloads from editor-backed templates.
type TemplateType string

const (
	TemplateTypeDownloadable TemplateType = "downloadable"
	TemplateTypeInteractive  TemplateType = "interactive"
)

// Template is a purchasable educational template. Titles are bilingual;
// Structure holds the field schema used to provision interactive records.
type Template struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	CategoryID snowflake.ID   `gorm:"index" json:"category_id,omitempty"`
	Slug       string         `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	TitleAr    string         `gorm:"type:text;not null" json:"title_ar"`
	TitleEn    string         `gorm:"type:text;not null" json:"title_en"`
	Type       TemplateType   `gorm:"type:text;not null" json:"type"`
	Price      int64          `gorm:"not null;default:0" json:"price"`
	Currency   string         `gorm:"type:text;not null;default:'USD'" json:"currency"`
	Structure  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"structure,omitempty"`
	Active     bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Template) TableName() string { return "templates" }

// Category groups templates for browsing.
type Category struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	NameAr    string       `gorm:"type:text;not null" json:"name_ar"`
	NameEn    string       `gorm:"type:text;not null" json:"name_en"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Category) TableName() string { return "categories" }
