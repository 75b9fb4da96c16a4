package api

import (
	"net/http"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) getInventory(c *gin.Context) {
	productID, ok := idParam(c, "product_id")
	if !ok {
		return
	}

	availability, err := h.svc.Inventory.GetAvailability(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

// getProduct returns the full projection, or the flat one with ?view=simple
func (h *Handler) getProduct(c *gin.Context) {
	productID, ok := idParam(c, "id")
	if !ok {
		return
	}

	product, category, err := h.svc.Inventory.GetProduct(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	switch c.DefaultQuery("view", "full") {
	case "simple":
		c.JSON(http.StatusOK, models.NewProductSimple(*product))
	case "full":
		c.JSON(http.StatusOK, models.NewProductFull(*product, *category))
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   apperr.EINVALID,
			"details": "view must be simple or full",
		})
	}
}
