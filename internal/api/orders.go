package api

import (
	"net/http"

	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
)

// checkout converts the caller's cart into an order.
// An Idempotency-Key header makes retries return the first order.
func (h *Handler) checkout(c *gin.Context) {
	result, err := h.svc.Checkout.Checkout(c.Request.Context(), principal(c).ID, c.GetHeader("Idempotency-Key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListOrders(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrderItems returns an order's line items to its owner or staff
func (h *Handler) getOrderItems(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	items, err := h.svc.Orders.GetOrderItems(c.Request.Context(), principal(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) updateOrder(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), principal(c), orderID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Orders.DeleteOrder(c.Request.Context(), principal(c), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
