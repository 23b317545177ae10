package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yishan1331/student-affairs-management/internal/middleware"
	"github.com/yishan1331/student-affairs-management/internal/models"
	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

// actorID fills an absent modifier with the authenticated user.
func actorID(c *gin.Context, supplied *string) *string {
	if supplied != nil && strings.TrimSpace(*supplied) != "" {
		return supplied
	}
	if claims := claimsFromContext(c); claims != nil {
		id := claims.UserID
		return &id
	}
	return supplied
}

func parseIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid id")
	}
	return id, nil
}

func parseInt64Query(c *gin.Context, key string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid "+key)
	}
	return &value, nil
}

func parseBoolQuery(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid "+key)
	}
	return &value, nil
}

func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "invalid "+key+", expected YYYY-MM-DD")
	}
	return &parsed, nil
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
