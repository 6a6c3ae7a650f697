package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
	"campus-ministry-api/services"
)

var smallGroupScopeFields = []string{
	rls.FieldRegionID, rls.FieldUniversityID, rls.FieldSmallGroupID,
}

func smallGroupHierarchyIDs(g models.SmallGroup) map[string]uint {
	return map[string]uint{
		rls.FieldRegionID:     g.RegionID,
		rls.FieldUniversityID: g.UniversityID,
		rls.FieldSmallGroupID: g.SmallGroupID,
	}
}

type createSmallGroupReq struct {
	Name         string `json:"name" binding:"required"`
	UniversityID uint   `json:"university_id" binding:"required"`
	LeaderUserID *uint  `json:"leader_user_id"`
}

type updateSmallGroupReq struct {
	Name         *string `json:"name"`
	UniversityID *uint   `json:"university_id"`
	LeaderUserID *uint   `json:"leader_user_id"`
}

func GetSmallGroups(c *gin.Context) {
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

	q := rls.Scoped(db.Model(&models.SmallGroup{}).Where("delete_at IS NULL"),
		scope, smallGroupScopeFields...)
	if hasUniversity {
		q = q.Where("university_id = ?", universityID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		abortServer(c, err)
		return
	}

	limit, offset := pagination(c)
	var groups []models.SmallGroup
	if err := q.Order("small_group_id ASC").Limit(limit).Offset(offset).
		Find(&groups).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": groups, "total": total})
}

func GetSmallGroup(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var group models.SmallGroup
	if err := db.Preload("University").
		Where("small_group_id = ? AND delete_at IS NULL", id).
		First(&group).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, smallGroupHierarchyIDs(group)) {
		abortNotFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"small_group": group})
}

func CreateSmallGroup(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntitySmallGroup, rls.OpCreate); err != nil {
		abortForbidden(c, err)
		return
	}

	var req createSmallGroupReq
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
	group := models.SmallGroup{
		Name:         req.Name,
		UniversityID: req.UniversityID,
		RegionID:     regionID,
		LeaderUserID: req.LeaderUserID,
		CreateAt:     &now,
	}
	if err := db.Create(&group).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"small_group": group})
}

func UpdateSmallGroup(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntitySmallGroup, rls.OpUpdate); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var group models.SmallGroup
	if err := db.Where("small_group_id = ? AND delete_at IS NULL", id).
		First(&group).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, smallGroupHierarchyIDs(group)) {
		abortNotFound(c)
		return
	}

	var req updateSmallGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.LeaderUserID != nil {
		group.LeaderUserID = req.LeaderUserID
	}
	if req.UniversityID != nil && *req.UniversityID != group.UniversityID {
		if err := rls.CheckExplicitFilter(scope, rls.FieldUniversityID, *req.UniversityID); err != nil {
			abortForbidden(c, err)
			return
		}
		regionID, err := services.UniversityRegion(db, *req.UniversityID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown university"})
			return
		}
		group.UniversityID = *req.UniversityID
		group.RegionID = regionID
	}

	now := time.Now()
	group.UpdateAt = &now
	if err := db.Save(&group).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"small_group": group})
}

func DeleteSmallGroup(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntitySmallGroup, rls.OpDelete); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var group models.SmallGroup
	if err := db.Where("small_group_id = ? AND delete_at IS NULL", id).
		First(&group).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, smallGroupHierarchyIDs(group)) {
		abortNotFound(c)
		return
	}

	if err := db.Model(&group).Update("delete_at", time.Now()).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
