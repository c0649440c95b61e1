package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/qalam/internal/catalog/domain"
	"github.com/smallbiznis/qalam/internal/catalog/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupCatalogService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Template{}, &domain.Category{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(4)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})
	return svc, db, node
}

func seedTemplate(t *testing.T, db *gorm.DB, node *snowflake.Node, slug string, active bool, createdAt time.Time) domain.Template {
	t.Helper()
	template := domain.Template{
		ID:        node.Generate(),
		Slug:      slug,
		TitleAr:   "قالب",
		TitleEn:   "Template",
		Type:      domain.TemplateTypeInteractive,
		Price:     5000,
		Currency:  "USD",
		Structure: []byte(`{"fields":[]}`),
		Active:    active,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := db.Create(&template).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return template
}

func TestGetActiveTemplate(t *testing.T) {
	svc, db, node := setupCatalogService(t)
	template := seedTemplate(t, db, node, "lesson-plan", true, time.Now().UTC())

	got, err := svc.Get(context.Background(), domain.GetTemplateRequest{ID: template.ID.String()})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Slug != "lesson-plan" {
		t.Fatalf("expected lesson-plan, got %s", got.Slug)
	}
	if got.Price != 5000 {
		t.Fatalf("expected price 5000, got %d", got.Price)
	}
}

func TestGetInactiveTemplateNotFound(t *testing.T) {
	svc, db, node := setupCatalogService(t)
	template := seedTemplate(t, db, node, "retired", false, time.Now().UTC())

	_, err := svc.Get(context.Background(), domain.GetTemplateRequest{ID: template.ID.String()})
	if !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound for inactive template, got %v", err)
	}
}

func TestGetInvalidID(t *testing.T) {
	svc, _, _ := setupCatalogService(t)

	_, err := svc.Get(context.Background(), domain.GetTemplateRequest{ID: "not-a-number"})
	if !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestListPagesThroughActiveTemplates(t *testing.T) {
	svc, db, node := setupCatalogService(t)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedTemplate(t, db, node, fmt.Sprintf("template-%d", i), true, base.Add(time.Duration(i)*time.Minute))
	}
	seedTemplate(t, db, node, "hidden", false, base.Add(time.Hour))
	ctx := context.Background()

	first, err := svc.List(ctx, domain.ListTemplateRequest{PageSize: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Templates) != 2 {
		t.Fatalf("expected 2 templates on first page, got %d", len(first.Templates))
	}
	if !first.HasMore || first.NextPageToken == "" {
		t.Fatal("expected a next page")
	}

	second, err := svc.List(ctx, domain.ListTemplateRequest{PageSize: 2, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Templates) != 1 {
		t.Fatalf("expected 1 template on second page, got %d", len(second.Templates))
	}
	for _, template := range append(first.Templates, second.Templates...) {
		if template.Slug == "hidden" {
			t.Fatal("inactive template leaked into listing")
		}
	}
}

func TestListCategories(t *testing.T) {
	svc, db, node := setupCatalogService(t)
	now := time.Now().UTC()
	categories := []domain.Category{
		{ID: node.Generate(), Slug: "worksheets", NameAr: "أوراق عمل", NameEn: "Worksheets", Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: node.Generate(), Slug: "archived", NameAr: "مؤرشف", NameEn: "Archived", Active: false, CreatedAt: now, UpdatedAt: now},
	}
	for i := range categories {
		if err := db.Create(&categories[i]).Error; err != nil {
			t.Fatalf("seed category: %v", err)
		}
	}

	got, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 active category, got %d", len(got))
	}
	if got[0].Slug != "worksheets" {
		t.Fatalf("expected worksheets, got %s", got[0].Slug)
	}
}
