package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qalam/internal/catalog/domain"
	"github.com/smallbiznis/qalam/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

// Get returns an active template by id. Inactive templates are treated as
// not found so they cannot be purchased.
func (s *Service) Get(ctx context.Context, req domain.GetTemplateRequest) (domain.Template, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.Template{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Template{}, err
	}
	if item == nil || !item.Active {
		return domain.Template{}, domain.ErrTemplateNotFound
	}

	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTemplateRequest) (domain.ListTemplateResponse, error) {
	filter := domain.ListTemplateFilter{
		CategoryID: strings.TrimSpace(req.CategoryID),
		Type:       strings.TrimSpace(req.Type),
		ActiveOnly: true,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListTemplateResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(template *domain.Template) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        template.ID.String(),
			CreatedAt: template.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	templates := make([]domain.Template, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		templates = append(templates, *item)
	}

	resp := domain.ListTemplateResponse{Templates: templates}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	items, err := s.repo.ListCategories(ctx, s.db)
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		categories = append(categories, *item)
	}
	return categories, nil
}
