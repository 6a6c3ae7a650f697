package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
	"campus-ministry-api/services"
)

var propertyScopeFields = []string{rls.FieldRegionID, rls.FieldUniversityID}

func propertyHierarchyIDs(p models.Property) map[string]uint {
	return map[string]uint{
		rls.FieldRegionID:     p.RegionID,
		rls.FieldUniversityID: p.UniversityID,
	}
}

type createPropertyReq struct {
	Name         string     `json:"name" binding:"required"`
	Category     string     `json:"category" binding:"required"`
	UniversityID uint       `json:"university_id" binding:"required"`
	AcquiredAt   *time.Time `json:"acquired_at"`
	Value        *float64   `json:"value"`
}

type updatePropertyReq struct {
	Name         *string    `json:"name"`
	Category     *string    `json:"category"`
	UniversityID *uint      `json:"university_id"`
	AcquiredAt   *time.Time `json:"acquired_at"`
	Value        *float64   `json:"value"`
}

func GetProperties(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	universityID, hasUniversity, ok := parseUintQuery(c, "university_id")
	if !ok {
		return
	}
	if !checkScopeFilter(c, scope, rls.FieldUniversityID, universityID, hasUniversity) {
		return
	}

	q := rls.Scoped(db.Model(&models.Property{}).Where("delete_at IS NULL"),
		scope, propertyScopeFields...)
	if hasUniversity {
		q = q.Where("university_id = ?", universityID)
	}
	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		abortServer(c, err)
		return
	}

	limit, offset := pagination(c)
	var properties []models.Property
	if err := q.Order("property_id ASC").Limit(limit).Offset(offset).
		Find(&properties).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": properties, "total": total})
}

func GetProperty(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var property models.Property
	if err := db.Preload("University").
		Where("property_id = ? AND delete_at IS NULL", id).
		First(&property).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, propertyHierarchyIDs(property)) {
		abortNotFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"property": property})
}

func CreateProperty(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityProperty, rls.OpCreate); err != nil {
		abortForbidden(c, err)
		return
	}

	var req createPropertyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}
	if err := rls.CheckExplicitFilter(scope, rls.FieldUniversityID, req.UniversityID); err != nil {
		abortForbidden(c, err)
		return
	}

	regionID, err := services.UniversityRegion(db, req.UniversityID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown university"})
		return
	}
	if err := rls.CheckExplicitFilter(scope, rls.FieldRegionID, regionID); err != nil {
		abortForbidden(c, err)
		return
	}

	now := time.Now()
	property := models.Property{
		Name:         req.Name,
		Category:     req.Category,
		UniversityID: req.UniversityID,
		RegionID:     regionID,
		AcquiredAt:   req.AcquiredAt,
		Value:        req.Value,
		CreateAt:     &now,
	}
	if err := db.Create(&property).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"property": property})
}

func UpdateProperty(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityProperty, rls.OpUpdate); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var property models.Property
	if err := db.Where("property_id = ? AND delete_at IS NULL", id).
		First(&property).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, propertyHierarchyIDs(property)) {
		abortNotFound(c)
		return
	}

	var req updatePropertyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if req.Name != nil {
		property.Name = *req.Name
	}
	if req.Category != nil {
		property.Category = *req.Category
	}
	if req.AcquiredAt != nil {
		property.AcquiredAt = req.AcquiredAt
	}
	if req.Value != nil {
		property.Value = req.Value
	}
	if req.UniversityID != nil && *req.UniversityID != property.UniversityID {
		if err := rls.CheckExplicitFilter(scope, rls.FieldUniversityID, *req.UniversityID); err != nil {
			abortForbidden(c, err)
			return
		}
		regionID, err := services.UniversityRegion(db, *req.UniversityID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown university"})
			return
		}
		property.UniversityID = *req.UniversityID
		property.RegionID = regionID
	}

	now := time.Now()
	property.UpdateAt = &now
	if err := db.Save(&property).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"property": property})
}

func DeleteProperty(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityProperty, rls.OpDelete); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var property models.Property
	if err := db.Where("property_id = ? AND delete_at IS NULL", id).
		First(&property).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, propertyHierarchyIDs(property)) {
		abortNotFound(c)
		return
	}

	if err := db.Model(&property).Update("delete_at", time.Now()).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
