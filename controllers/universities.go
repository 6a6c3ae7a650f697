package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
)

var universityScopeFields = []string{rls.FieldRegionID, rls.FieldUniversityID}

func universityHierarchyIDs(u models.University) map[string]uint {
	return map[string]uint{
		rls.FieldRegionID:     u.RegionID,
		rls.FieldUniversityID: u.UniversityID,
	}
}

type createUniversityReq struct {
	Name     string `json:"name" binding:"required"`
	Code     string `json:"code" binding:"required"`
	RegionID uint   `json:"region_id" binding:"required"`
}

type updateUniversityReq struct {
	Name     *string `json:"name"`
	Code     *string `json:"code"`
	RegionID *uint   `json:"region_id"`
}

func GetUniversities(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	regionID, hasRegion, ok := parseUintQuery(c, "region_id")
	if !ok {
		return
	}
	if !checkScopeFilter(c, scope, rls.FieldRegionID, regionID, hasRegion) {
		return
	}

	q := rls.Scoped(db.Model(&models.University{}).Where("delete_at IS NULL"),
		scope, universityScopeFields...)
	if hasRegion {
		q = q.Where("region_id = ?", regionID)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		q = q.Where("name LIKE ? OR code LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		abortServer(c, err)
		return
	}

	limit, offset := pagination(c)
	var universities []models.University
	if err := q.Order("university_id ASC").Limit(limit).Offset(offset).
		Find(&universities).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": universities, "total": total})
}

func GetUniversity(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var university models.University
	if err := db.Preload("Region").
		Where("university_id = ? AND delete_at IS NULL", id).
		First(&university).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, universityHierarchyIDs(university)) {
		abortNotFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"university": university})
}

func CreateUniversity(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityUniversity, rls.OpCreate); err != nil {
		abortForbidden(c, err)
		return
	}

	var req createUniversityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}
	if err := rls.CheckExplicitFilter(scope, rls.FieldRegionID, req.RegionID); err != nil {
		abortForbidden(c, err)
		return
	}

	var region models.Region
	if err := db.Where("region_id = ? AND delete_at IS NULL", req.RegionID).
		First(&region).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown region"})
		return
	}

	now := time.Now()
	university := models.University{
		Name:     req.Name,
		Code:     req.Code,
		RegionID: req.RegionID,
		CreateAt: &now,
	}
	if err := db.Create(&university).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"university": university})
}

func UpdateUniversity(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityUniversity, rls.OpUpdate); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var university models.University
	if err := db.Where("university_id = ? AND delete_at IS NULL", id).
		First(&university).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, universityHierarchyIDs(university)) {
		abortNotFound(c)
		return
	}

	var req updateUniversityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if req.Name != nil {
		university.Name = *req.Name
	}
	if req.Code != nil {
		university.Code = *req.Code
	}
	if req.RegionID != nil && *req.RegionID != university.RegionID {
		if err := rls.CheckExplicitFilter(scope, rls.FieldRegionID, *req.RegionID); err != nil {
			abortForbidden(c, err)
			return
		}
		var region models.Region
		if err := db.Where("region_id = ? AND delete_at IS NULL", *req.RegionID).
			First(&region).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown region"})
			return
		}
		university.RegionID = *req.RegionID
	}

	now := time.Now()
	university.UpdateAt = &now
	if err := db.Save(&university).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"university": university})
}

func DeleteUniversity(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityUniversity, rls.OpDelete); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var university models.University
	if err := db.Where("university_id = ? AND delete_at IS NULL", id).
		First(&university).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, universityHierarchyIDs(university)) {
		abortNotFound(c)
		return
	}

	if err := db.Model(&university).Update("delete_at", time.Now()).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
