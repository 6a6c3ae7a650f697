package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"campus-ministry-api/config"
	"campus-ministry-api/middleware"
	"campus-ministry-api/rls"
)

func getDB() *gorm.DB { return config.DB }

func getCurrentUserID(c *gin.Context) (uint, bool) {
	if v, ok := c.Get("userID"); ok {
		switch t := v.(type) {
		case int:
			return uint(t), true
		case int64:
			return uint(t), true
		case float64:
			return uint(t), true
		case uint:
			return t, true
		}
	}
	return 0, false
}

func getScope(c *gin.Context) (rls.UserScope, bool) {
	return middleware.GetScope(c)
}

// requireScope aborts with 401 when no scope was resolved for the request.
func requireScope(c *gin.Context) (rls.UserScope, bool) {
	scope, ok := getScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return scope, ok
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// parseUintQuery returns (value, present, ok). A malformed value aborts 400.
func parseUintQuery(c *gin.Context, name string) (uint, bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, false, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false, false
	}
	return uint(v), true, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("limit"))); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("offset"))); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// abortNotFound is the single 404 body. Rows filtered out by scope and rows
// that do not exist produce identical responses so existence never leaks.
func abortNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func abortForbidden(c *gin.Context, err error) {
	c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
}

func abortValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
}

func abortServer(c *gin.Context, err error) {
	log.Printf("internal error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// fetchError maps a single-row lookup failure: missing rows 404, anything
// else 500.
func fetchError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		abortNotFound(c)
		return
	}
	abortServer(c, err)
}

// checkScopeFilter validates an optional explicit query filter against the
// scope. Explicit values may narrow within scope, never escape it.
func checkScopeFilter(c *gin.Context, scope rls.UserScope, field string, value uint, present bool) bool {
	if !present {
		return true
	}
	if err := rls.CheckExplicitFilter(scope, field, value); err != nil {
		abortForbidden(c, err)
		return false
	}
	return true
}
