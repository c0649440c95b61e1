package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/qalam/internal/catalog/domain"
)

type listTemplatesQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int32  `form:"page_size"`
	CategoryID string `form:"category_id"`
	Type       string `form:"type"`
}

func (s *Server) ListTemplates(c *gin.Context) {
	var query listTemplatesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.catalogSvc.List(c.Request.Context(), catalogdomain.ListTemplateRequest{
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
		CategoryID: query.CategoryID,
		Type:       query.Type,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetTemplate(c *gin.Context) {
	template, err := s.catalogSvc.Get(c.Request.Context(), catalogdomain.GetTemplateRequest{
		ID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, template)
}

func (s *Server) ListCategories(c *gin.Context) {
	categories, err := s.catalogSvc.Categories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}
