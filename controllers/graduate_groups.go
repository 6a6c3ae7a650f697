package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
)

var graduateGroupScopeFields = []string{
	rls.FieldRegionID, rls.FieldGraduateGroupID,
}

func graduateGroupHierarchyIDs(g models.GraduateSmallGroup) map[string]uint {
	return map[string]uint{
		rls.FieldRegionID:        g.RegionID,
		rls.FieldGraduateGroupID: g.GraduateGroupID,
	}
}

type createGraduateGroupReq struct {
	Name       string `json:"name" binding:"required"`
	RegionID   uint   `json:"region_id" binding:"required"`
	ProvinceID *uint  `json:"province_id"`
}

type updateGraduateGroupReq struct {
	Name       *string `json:"name"`
	RegionID   *uint   `json:"region_id"`
	ProvinceID *uint   `json:"province_id"`
}

func GetGraduateGroups(c *gin.Context) {
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

	q := rls.Scoped(db.Model(&models.GraduateSmallGroup{}).Where("delete_at IS NULL"),
		scope, graduateGroupScopeFields...)
	if hasRegion {
		q = q.Where("region_id = ?", regionID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		abortServer(c, err)
		return
	}

	limit, offset := pagination(c)
	var groups []models.GraduateSmallGroup
	if err := q.Order("graduate_group_id ASC").Limit(limit).Offset(offset).
		Find(&groups).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": groups, "total": total})
}

func GetGraduateGroup(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var group models.GraduateSmallGroup
	if err := db.Preload("Region").Preload("Province").
		Where("graduate_group_id = ? AND delete_at IS NULL", id).
		First(&group).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, graduateGroupHierarchyIDs(group)) {
		abortNotFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"graduate_group": group})
}

func CreateGraduateGroup(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGraduateGroup, rls.OpCreate); err != nil {
		abortForbidden(c, err)
		return
	}

	var req createGraduateGroupReq
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
	group := models.GraduateSmallGroup{
		Name:       req.Name,
		RegionID:   req.RegionID,
		ProvinceID: req.ProvinceID,
		CreateAt:   &now,
	}
	if err := db.Create(&group).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"graduate_group": group})
}

func UpdateGraduateGroup(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGraduateGroup, rls.OpUpdate); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var group models.GraduateSmallGroup
	if err := db.Where("graduate_group_id = ? AND delete_at IS NULL", id).
		First(&group).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, graduateGroupHierarchyIDs(group)) {
		abortNotFound(c)
		return
	}

	var req updateGraduateGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.RegionID != nil && *req.RegionID != group.RegionID {
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
		group.RegionID = *req.RegionID
		// A province belongs to one region; moving regions invalidates it.
		group.ProvinceID = nil
	}
	if req.ProvinceID != nil {
		group.ProvinceID = req.ProvinceID
	}

	now := time.Now()
	group.UpdateAt = &now
	if err := db.Save(&group).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"graduate_group": group})
}

func DeleteGraduateGroup(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGraduateGroup, rls.OpDelete); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var group models.GraduateSmallGroup
	if err := db.Where("graduate_group_id = ? AND delete_at IS NULL", id).
		First(&group).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, graduateGroupHierarchyIDs(group)) {
		abortNotFound(c)
		return
	}

	if err := db.Model(&group).Update("delete_at", time.Now()).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
