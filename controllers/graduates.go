package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
)

// graduateScopeFields: graduates carry no region or university column, only
// the graduate group pin.
var graduateScopeFields = []string{rls.FieldGraduateGroupID}

func graduateHierarchyIDs(g models.Graduate) map[string]uint {
	return map[string]uint{rls.FieldGraduateGroupID: g.GraduateGroupID}
}

type createGraduateReq struct {
	FirstName       string  `json:"first_name" binding:"required"`
	LastName        string  `json:"last_name" binding:"required"`
	Email           *string `json:"email" binding:"omitempty,email"`
	Phone           *string `json:"phone" binding:"omitempty,phone"`
	GraduateGroupID uint    `json:"graduate_group_id" binding:"required"`
	ProvinceID      *uint   `json:"province_id"`
	Employer        *string `json:"employer"`
}

type updateGraduateReq struct {
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Email           *string `json:"email" binding:"omitempty,email"`
	Phone           *string `json:"phone" binding:"omitempty,phone"`
	GraduateGroupID *uint   `json:"graduate_group_id"`
	ProvinceID      *uint   `json:"province_id"`
	Employer        *string `json:"employer"`
}

func GetGraduates(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGraduate, rls.OpRead); err != nil {
		abortForbidden(c, err)
		return
	}

	groupID, hasGroup, ok := parseUintQuery(c, "graduate_group_id")
	if !ok {
		return
	}
	if !checkScopeFilter(c, scope, rls.FieldGraduateGroupID, groupID, hasGroup) {
		return
	}
	provinceID, hasProvince, ok := parseUintQuery(c, "province_id")
	if !ok {
		return
	}

	q := rls.Scoped(db.Model(&models.Graduate{}).Where("delete_at IS NULL"),
		scope, graduateScopeFields...)
	if hasGroup {
		q = q.Where("graduate_group_id = ?", groupID)
	}
	if hasProvince {
		q = q.Where("province_id = ?", provinceID)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		q = q.Where("first_name LIKE ? OR last_name LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		abortServer(c, err)
		return
	}

	limit, offset := pagination(c)
	var graduates []models.Graduate
	if err := q.Order("graduate_id DESC").Limit(limit).Offset(offset).
		Find(&graduates).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": graduates, "total": total})
}

func GetGraduate(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGraduate, rls.OpRead); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var graduate models.Graduate
	if err := db.Preload("GraduateGroup").Preload("Province").
		Where("graduate_id = ? AND delete_at IS NULL", id).
		First(&graduate).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, graduateHierarchyIDs(graduate)) {
		abortNotFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"graduate": graduate})
}

func CreateGraduate(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGraduate, rls.OpCreate); err != nil {
		abortForbidden(c, err)
		return
	}

	var req createGraduateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}
	if err := rls.CheckExplicitFilter(scope, rls.FieldGraduateGroupID, req.GraduateGroupID); err != nil {
		abortForbidden(c, err)
		return
	}

	var group models.GraduateSmallGroup
	if err := db.Where("graduate_group_id = ? AND delete_at IS NULL", req.GraduateGroupID).
		First(&group).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown graduate group"})
		return
	}

	now := time.Now()
	graduate := models.Graduate{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		GraduateGroupID: req.GraduateGroupID,
		ProvinceID:      req.ProvinceID,
		Employer:        req.Employer,
		CreateAt:        &now,
	}
	if err := db.Create(&graduate).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"graduate": graduate})
}

func UpdateGraduate(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGraduate, rls.OpUpdate); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var graduate models.Graduate
	if err := db.Where("graduate_id = ? AND delete_at IS NULL", id).
		First(&graduate).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, graduateHierarchyIDs(graduate)) {
		abortNotFound(c)
		return
	}

	var req updateGraduateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if req.FirstName != nil {
		graduate.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		graduate.LastName = *req.LastName
	}
	if req.Email != nil {
		graduate.Email = req.Email
	}
	if req.Phone != nil {
		graduate.Phone = req.Phone
	}
	if req.Employer != nil {
		graduate.Employer = req.Employer
	}
	if req.ProvinceID != nil {
		graduate.ProvinceID = req.ProvinceID
	}
	if req.GraduateGroupID != nil && *req.GraduateGroupID != graduate.GraduateGroupID {
		if err := rls.CheckExplicitFilter(scope, rls.FieldGraduateGroupID, *req.GraduateGroupID); err != nil {
			abortForbidden(c, err)
			return
		}
		var group models.GraduateSmallGroup
		if err := db.Where("graduate_group_id = ? AND delete_at IS NULL", *req.GraduateGroupID).
			First(&group).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown graduate group"})
			return
		}
		graduate.GraduateGroupID = *req.GraduateGroupID
	}

	now := time.Now()
	graduate.UpdateAt = &now
	if err := db.Save(&graduate).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"graduate": graduate})
}

func DeleteGraduate(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGraduate, rls.OpDelete); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var graduate models.Graduate
	if err := db.Where("graduate_id = ? AND delete_at IS NULL", id).
		First(&graduate).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, graduateHierarchyIDs(graduate)) {
		abortNotFound(c)
		return
	}

	if err := db.Model(&graduate).Update("delete_at", time.Now()).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
