package api

import (
	"context"
	"errors"
	"strings"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "principal"

// Claims are the token claims this service reads
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// PrincipalLoader resolves a token's user id to the current account record
type PrincipalLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// authRequired authenticates the bearer token and loads the principal.
// Staff and banned flags always come from the account record, never from the token.
func authRequired(secret []byte, users PrincipalLoader) gin.HandlerFunc {
	const op = "api.authRequired"

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			respondError(c, apperr.Unauthorized(op, "Authentication credentials were not provided"))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		if err != nil || !token.Valid || claims.UserID == 0 {
			respondError(c, apperr.Unauthorized(op, "Invalid or expired token"))
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(c, apperr.Unauthorized(op, "User no longer exists"))
				return
			}
			respondError(c, apperr.Internal(err, op, "failed to load principal"))
			return
		}
		if user.IsBanned {
			respondError(c, apperr.Forbidden(op, "Your account has been banned"))
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

// principal returns the authenticated user set by authRequired
func principal(c *gin.Context) *models.User {
	return c.MustGet(principalKey).(*models.User)
}
