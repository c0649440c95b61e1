package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/qalam/pkg/db/pagination"
)

type GetTemplateRequest struct {
	ID string
}

type ListTemplateRequest struct {
	PageToken  string
	PageSize   int32
	CategoryID string
	Type       string
}

type ListTemplateFilter struct {
	CategoryID string
	Type       string
	ActiveOnly bool
}

type ListTemplateResponse struct {
	pagination.PageInfo
	Templates []Template `json:"templates"`
}

type Service interface {
	Get(context.Context, GetTemplateRequest) (Template, error)
	List(context.Context, ListTemplateRequest) (ListTemplateResponse, error)
	Categories(context.Context) ([]Category, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrTemplateNotFound = errors.New("template_not_found")
)
