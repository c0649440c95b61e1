package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qalam/internal/catalog/domain"
	"github.com/smallbiznis/qalam/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, template *domain.Template) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO templates (id, category_id, slug, title_ar, title_en, type, price, currency, structure, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		template.ID,
		template.CategoryID,
		template.Slug,
		template.TitleAr,
		template.TitleEn,
		template.Type,
		template.Price,
		template.Currency,
		template.Structure,
		template.Active,
		template.CreatedAt,
		template.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Template, error) {
	var template domain.Template
	err := db.WithContext(ctx).Raw(
		`SELECT id, category_id, slug, title_ar, title_en, type, price, currency, structure, active, created_at, updated_at
		 FROM templates WHERE id = ?`,
		id,
	).Scan(&template).Error
	if err != nil {
		return nil, err
	}
	if template.ID == 0 {
		return nil, nil
	}
	return &template, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListTemplateFilter, page pagination.Pagination) ([]*domain.Template, error) {
	var templates []*domain.Template
	stmt := db.WithContext(ctx).Model(&domain.Template{})
	if filter.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if filter.CategoryID != "" {
		stmt = stmt.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 20
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB) ([]*domain.Category, error) {
	var categories []*domain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name_ar, name_en, active, created_at, updated_at
		 FROM categories WHERE active = ? ORDER BY name_en ASC`,
		true,
	).Scan(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}
