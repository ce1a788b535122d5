package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trashinator/internal/service"
	"github.com/trashinator/internal/tracking"
)

const dateFormat = "2006-01-02"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondServiceError 将业务错误映射为 HTTP 状态码
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUniquenessViolation):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrHouseholdNotFound),
		errors.Is(err, service.ErrPeriodNotFound),
		errors.Is(err, service.ErrTrashNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	default:
		log.Printf("[handler] %s: %v", fallback, err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// parseDate 解析 YYYY-MM-DD 日期并归一化为 UTC 零点
func parseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(dateFormat, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", service.ErrValidation)
	}
	return tracking.Day(parsed), nil
}

func formatDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateFormat)
}

// volumePayload 同时给出升与加仑，均保留两位小数
func volumePayload(litres float64) gin.H {
	return gin.H{
		"litres":  tracking.Round2(litres),
		"gallons": tracking.Round2(tracking.LitresToGallons(litres)),
	}
}
