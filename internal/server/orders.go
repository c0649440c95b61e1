package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/qalam/internal/order/domain"
)

type createOrderRequest struct {
	UserID     string                 `json:"user_id" binding:"required"`
	Items      []orderdomain.LineItem `json:"items"`
	CouponCode string                 `json:"coupon_code"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.CreateOrder(c.Request.Context(), orderdomain.CreateOrderRequest{
		UserID:     req.UserID,
		Items:      req.Items,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

type completeOrderRequest struct {
	PaymentID     string         `json:"payment_id" binding:"required"`
	PaymentMethod string         `json:"payment_method"`
	Metadata      map[string]any `json:"metadata"`
}

// CompleteOrder is the boundary the payment-gateway callback lands on; the
// gateway-specific charge capture happens upstream.
func (s *Server) CompleteOrder(c *gin.Context) {
	var req completeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.orderSvc.CompletePayment(c.Request.Context(), orderdomain.CompletePaymentRequest{
		OrderID:       c.Param("id"),
		PaymentID:     req.PaymentID,
		PaymentMethod: req.PaymentMethod,
		Metadata:      req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (s *Server) CancelOrder(c *gin.Context) {
	order, err := s.orderSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (s *Server) RefundOrder(c *gin.Context) {
	order, err := s.orderSvc.Refund(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (s *Server) GetOrder(c *gin.Context) {
	order, err := s.orderSvc.GetByID(c.Request.Context(), orderdomain.GetOrderRequest{
		ID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type listOrdersQuery struct {
	UserID    string `form:"user_id"`
	PageToken string `form:"page_token"`
	PageSize  int32  `form:"page_size"`
}

func (s *Server) ListOrders(c *gin.Context) {
	var query listOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.orderSvc.ListByUser(c.Request.Context(), orderdomain.ListOrderRequest{
		UserID:    query.UserID,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
