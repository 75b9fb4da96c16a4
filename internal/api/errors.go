package api

import (
	"net/http"

	"shop-service/internal/apperr"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByCode = map[string]int{
	apperr.EINVALID:      http.StatusBadRequest,
	apperr.ESTOCK:        http.StatusBadRequest,
	apperr.EEMPTYCART:    http.StatusBadRequest,
	apperr.EUNAUTHORIZED: http.StatusUnauthorized,
	apperr.EFORBIDDEN:    http.StatusForbidden,
	apperr.ENOTFOUND:     http.StatusNotFound,
	apperr.ECONFLICT:     http.StatusConflict,
	apperr.EINTERNAL:     http.StatusInternalServerError,
}

// HTTPStatus maps an error to its response status
func HTTPStatus(err error) int {
	if status, ok := statusByCode[apperr.Code(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": code, "details": message}
func respondError(c *gin.Context, err error) {
	code := apperr.Code(err)
	status := HTTPStatus(err)

	body := gin.H{
		"error":   code,
		"details": apperr.Message(err),
	}
	if e, ok := apperr.As(err); ok {
		switch {
		case e.Code == apperr.ESTOCK:
			body["product_id"] = e.ProductID
			body["available"] = e.Available
		case e.Code == apperr.ECONFLICT && e.ProductID != 0:
			body["product_id"] = e.ProductID
		}
	}

	if status >= http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(status, body)
}

// respondBindError reports a malformed request body
func respondBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   apperr.EINVALID,
		"details": err.Error(),
	})
}
