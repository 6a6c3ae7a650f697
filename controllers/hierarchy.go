package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
)

// Regions are near-reference data, but still honor the hierarchy: every
// scope below national carries an ancestor region pin and sees that region
// only. Provinces stay fully readable. Mutations happen only at the top.

func regionVisible(scope rls.UserScope, regionID uint) bool {
	return scope.RegionID == nil || *scope.RegionID == regionID
}

func GetRegions(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	q := db.Where("delete_at IS NULL")
	if scope.RegionID != nil {
		q = q.Where("region_id = ?", *scope.RegionID)
	}

	var regions []models.Region
	if err := q.Order("region_id ASC").Find(&regions).Error; err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": regions})
}

func GetRegion(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var region models.Region
	if err := db.Where("region_id = ? AND delete_at IS NULL", id).
		First(&region).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !regionVisible(scope, region.RegionID) {
		abortNotFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": region})
}

func CreateRegion(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityRegion, rls.OpCreate); err != nil {
		abortForbidden(c, err)
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	now := time.Now()
	region := models.Region{Name: req.Name, CreateAt: &now}
	if err := db.Create(&region).Error; err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": region})
}

func UpdateRegion(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityRegion, rls.OpUpdate); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var region models.Region
	if err := db.Where("region_id = ? AND delete_at IS NULL", id).
		First(&region).Error; err != nil {
		fetchError(c, err)
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	now := time.Now()
	region.Name = req.Name
	region.UpdateAt = &now
	if err := db.Save(&region).Error; err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": region})
}

func DeleteRegion(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityRegion, rls.OpDelete); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var region models.Region
	if err := db.Where("region_id = ? AND delete_at IS NULL", id).
		First(&region).Error; err != nil {
		fetchError(c, err)
		return
	}

	if err := db.Model(&region).Update("delete_at", time.Now()).Error; err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func GetProvinces(c *gin.Context) {
	db := getDB()
	if _, ok := requireScope(c); !ok {
		return
	}

	var provinces []models.Province
	if err := db.Order("province_id ASC").Find(&provinces).Error; err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": provinces})
}
