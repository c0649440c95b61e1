package server

import (
	"errors"
	"net/http"

	catalogdomain "github.com/smallbiznis/qalam/internal/catalog/domain"
	coupondomain "github.com/smallbiznis/qalam/internal/coupon/domain"
	orderdomain "github.com/smallbiznis/qalam/internal/order/domain"

	"github.com/gin-gonic/gin"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrTemplateNotFound),
		errors.Is(err, orderdomain.ErrTemplateNotFound),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "resource not found",
		}
	case errors.Is(err, orderdomain.ErrInvalidOrderState):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_order_state",
			Message: "order is not in a valid state for this operation",
		}
	case errors.Is(err, orderdomain.ErrEmptyCart),
		errors.Is(err, orderdomain.ErrInvalidQuantity),
		errors.Is(err, orderdomain.ErrInvalidUser),
		errors.Is(err, orderdomain.ErrInvalidPayment),
		errors.Is(err, orderdomain.ErrInvalidID),
		errors.Is(err, catalogdomain.ErrInvalidID),
		errors.Is(err, coupondomain.ErrCouponInvalid),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
