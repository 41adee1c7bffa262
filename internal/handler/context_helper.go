package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/middleware"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
	"github.com/noah-isme/creatia-api/pkg/response"
)

// actorFromContext returns the authenticated actor or writes a 401 and
// returns nil.
func actorFromContext(c *gin.Context) *models.JWTClaims {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return claims
}

// idParam parses the :id route parameter or writes a 404.
func idParam(c *gin.Context, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, notFound))
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body or writes a 400.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func requestMeta(c *gin.Context) models.LoginRequest {
	return models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
