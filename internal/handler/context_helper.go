package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/projecthub-api/internal/middleware"
	"github.com/noah-isme/projecthub-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// currentUser maps the authenticated claims to the identity services act for.
func currentUser(c *gin.Context) *models.CurrentUser {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return nil
	}
	name := claims.FullName
	if name == "" {
		name = claims.Email
	}
	return &models.CurrentUser{ID: claims.UserID, Role: claims.Role, Name: name}
}
