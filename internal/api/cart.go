package api

import (
	"net/http"

	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
)

type applyDiscountRequest struct {
	DiscountCode string `json:"discount_code"`
}

// getCart returns the caller's cart items
func (h *Handler) getCart(c *gin.Context) {
	view, err := h.svc.Carts.GetCart(c.Request.Context(), principal(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Items)
}

// listCarts returns every cart; staff only
func (h *Handler) listCarts(c *gin.Context) {
	views, err := h.svc.Carts.ListCarts(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) addToCart(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	view, err := h.svc.Carts.AddItem(c.Request.Context(), principal(c).ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearCart(c *gin.Context) {
	view, err := h.svc.Carts.Clear(c.Request.Context(), principal(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) applyDiscount(c *gin.Context) {
	var req applyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// a missing code is reported by the cart engine as a validation error
	view, err := h.svc.Carts.ApplyDiscount(c.Request.Context(), principal(c).ID, req.DiscountCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) listDiscounts(c *gin.Context) {
	discounts, err := h.svc.Discounts.List(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, discounts)
}

func (h *Handler) createDiscount(c *gin.Context) {
	var req service.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	discount, err := h.svc.Discounts.Create(c.Request.Context(), principal(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, discount)
}

func (h *Handler) deleteDiscount(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Discounts.Delete(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
