package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qalam/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, template *Template) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Template, error)
	List(ctx context.Context, db *gorm.DB, filter ListTemplateFilter, page pagination.Pagination) ([]*Template, error)
	ListCategories(ctx context.Context, db *gorm.DB) ([]*Category, error)
}
