package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dinehub/printrouter/internal/core"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type OrderItemRequest struct {
	ID           string  `json:"id"`
	Name         string  `json:"name" binding:"required"`
	Quantity     int     `json:"quantity" binding:"required,gt=0"`
	Price        float64 `json:"price"`
	Notes        string  `json:"notes"`
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
}

type RouteOrderRequest struct {
	OrderID     string             `json:"orderId" binding:"required"`
	Items       []OrderItemRequest `json:"orderItems" binding:"required,min=1,dive"`
	TableNumber string             `json:"tableNumber"`
	GuestCount  int                `json:"guestCount"`
	OrderTime   string             `json:"orderTime"`
}

type RouteOrderResponse struct {
	Jobs              []*core.Job `json:"jobs"`
	Warnings          []string    `json:"warnings,omitempty"`
	SkippedCategories int         `json:"skippedCategories"`
}

type RoutingHandler struct {
	router *core.Router
}

func NewRoutingHandler(router *core.Router) *RoutingHandler {
	return &RoutingHandler{router: router}
}

// RouteOrder accepts an order from the POS, creates one print job per
// resolved category and returns immediately. Job execution is asynchronous;
// callers poll the jobs endpoints for progress.
func (h *RoutingHandler) RouteOrder(c *gin.Context) {
	var req RouteOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	items := make([]core.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, core.OrderItem{
			ID:           it.ID,
			Name:         it.Name,
			Quantity:     it.Quantity,
			Price:        it.Price,
			Notes:        it.Notes,
			CategoryID:   it.CategoryID,
			CategoryName: it.CategoryName,
		})
	}

	result, err := h.router.RouteOrder(c.Request.Context(), core.RouteRequest{
		OrderID:     req.OrderID,
		Items:       items,
		TableNumber: req.TableNumber,
		GuestCount:  req.GuestCount,
		OrderTime:   req.OrderTime,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNoPrintersConfigured):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "no_printers_configured",
				Message: "No printers are configured, order cannot be routed",
			})
		case errors.Is(err, core.ErrMissingOrderID), errors.Is(err, core.ErrNoOrderItems):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "routing_error",
				Message: "Failed to route order",
			})
		}
		return
	}

	c.JSON(http.StatusOK, RouteOrderResponse{
		Jobs:              result.Jobs,
		Warnings:          result.Warnings,
		SkippedCategories: len(result.Warnings),
	})
}
