package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
	"campus-ministry-api/services"
)

var gbuDataScopeFields = []string{rls.FieldRegionID, rls.FieldUniversityID}

func gbuDataHierarchyIDs(d models.GBUData) map[string]uint {
	return map[string]uint{
		rls.FieldRegionID:     d.RegionID,
		rls.FieldUniversityID: d.UniversityID,
	}
}

type createGBUDataReq struct {
	UniversityID    uint    `json:"university_id" binding:"required"`
	Year            int     `json:"year" binding:"required"`
	Term            int     `json:"term" binding:"required,min=1,max=3"`
	StudentCount    int     `json:"student_count" binding:"min=0"`
	SmallGroupCount int     `json:"small_group_count" binding:"min=0"`
	GraduateCount   int     `json:"graduate_count" binding:"min=0"`
	Notes           *string `json:"notes"`
}

type updateGBUDataReq struct {
	StudentCount    *int    `json:"student_count" binding:"omitempty,min=0"`
	SmallGroupCount *int    `json:"small_group_count" binding:"omitempty,min=0"`
	GraduateCount   *int    `json:"graduate_count" binding:"omitempty,min=0"`
	Notes           *string `json:"notes"`
}

func GetGBUData(c *gin.Context) {
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

	q := rls.Scoped(db.Model(&models.GBUData{}).Where("delete_at IS NULL"),
		scope, gbuDataScopeFields...)
	if hasUniversity {
		q = q.Where("university_id = ?", universityID)
	}
	if year, hasYear, ok := parseUintQuery(c, "year"); !ok {
		return
	} else if hasYear {
		q = q.Where("year = ?", year)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		abortServer(c, err)
		return
	}

	limit, offset := pagination(c)
	var rows []models.GBUData
	if err := q.Order("year DESC, term DESC").Limit(limit).Offset(offset).
		Find(&rows).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": rows, "total": total})
}

func GetGBUDataRow(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var row models.GBUData
	if err := db.Preload("University").
		Where("gbu_data_id = ? AND delete_at IS NULL", id).
		First(&row).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, gbuDataHierarchyIDs(row)) {
		abortNotFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"gbu_data": row})
}

func CreateGBUData(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGBUData, rls.OpCreate); err != nil {
		abortForbidden(c, err)
		return
	}

	var req createGBUDataReq
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

	now := time.Now()
	row := models.GBUData{
		UniversityID:    req.UniversityID,
		RegionID:        regionID,
		Year:            req.Year,
		Term:            req.Term,
		StudentCount:    req.StudentCount,
		SmallGroupCount: req.SmallGroupCount,
		GraduateCount:   req.GraduateCount,
		Notes:           req.Notes,
		CreateAt:        &now,
	}
	if err := db.Create(&row).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"gbu_data": row})
}

func UpdateGBUData(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGBUData, rls.OpUpdate); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var row models.GBUData
	if err := db.Where("gbu_data_id = ? AND delete_at IS NULL", id).
		First(&row).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, gbuDataHierarchyIDs(row)) {
		abortNotFound(c)
		return
	}

	var req updateGBUDataReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if req.StudentCount != nil {
		row.StudentCount = *req.StudentCount
	}
	if req.SmallGroupCount != nil {
		row.SmallGroupCount = *req.SmallGroupCount
	}
	if req.GraduateCount != nil {
		row.GraduateCount = *req.GraduateCount
	}
	if req.Notes != nil {
		row.Notes = req.Notes
	}

	now := time.Now()
	row.UpdateAt = &now
	if err := db.Save(&row).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"gbu_data": row})
}

func DeleteGBUData(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityGBUData, rls.OpDelete); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var row models.GBUData
	if err := db.Where("gbu_data_id = ? AND delete_at IS NULL", id).
		First(&row).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, gbuDataHierarchyIDs(row)) {
		abortNotFound(c)
		return
	}

	if err := db.Model(&row).Update("delete_at", time.Now()).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetGBUSummary aggregates reporting rows per university within the caller's
// visibility.
func GetGBUSummary(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	type summaryRow struct {
		UniversityID    uint `gorm:"column:university_id" json:"university_id"`
		StudentCount    int  `gorm:"column:student_count" json:"student_count"`
		SmallGroupCount int  `gorm:"column:small_group_count" json:"small_group_count"`
		GraduateCount   int  `gorm:"column:graduate_count" json:"graduate_count"`
	}

	q := rls.Scoped(db.Model(&models.GBUData{}).Where("delete_at IS NULL"),
		scope, gbuDataScopeFields...)
	if year, hasYear, ok := parseUintQuery(c, "year"); !ok {
		return
	} else if hasYear {
		q = q.Where("year = ?", year)
	}

	var rows []summaryRow
	if err := q.Select("university_id, SUM(student_count) AS student_count, " +
		"SUM(small_group_count) AS small_group_count, SUM(graduate_count) AS graduate_count").
		Group("university_id").Scan(&rows).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": rows})
}
