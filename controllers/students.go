package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
	"campus-ministry-api/services"
)

// studentScopeFields are the hierarchy columns the students table declares.
var studentScopeFields = []string{
	rls.FieldRegionID, rls.FieldUniversityID, rls.FieldSmallGroupID,
}

func studentHierarchyIDs(s models.Student) map[string]uint {
	ids := map[string]uint{
		rls.FieldRegionID:     s.RegionID,
		rls.FieldUniversityID: s.UniversityID,
	}
	if s.SmallGroupID != nil {
		ids[rls.FieldSmallGroupID] = *s.SmallGroupID
	}
	return ids
}

type createStudentReq struct {
	FirstName    string  `json:"first_name" binding:"required"`
	LastName     string  `json:"last_name" binding:"required"`
	Email        *string `json:"email" binding:"omitempty,email"`
	Phone        *string `json:"phone" binding:"omitempty,phone"`
	Gender       string  `json:"gender" binding:"omitempty,oneof=male female"`
	UniversityID uint    `json:"university_id" binding:"required"`
	SmallGroupID *uint   `json:"small_group_id"`
	// region_id in the payload is accepted and ignored; the stored value is
	// always derived from the university.
	RegionID uint   `json:"region_id"`
	Status   string `json:"status" binding:"omitempty,oneof=active inactive graduated"`
}

type updateStudentReq struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Email        *string `json:"email" binding:"omitempty,email"`
	Phone        *string `json:"phone" binding:"omitempty,phone"`
	Gender       *string `json:"gender" binding:"omitempty,oneof=male female"`
	UniversityID *uint   `json:"university_id"`
	SmallGroupID *uint   `json:"small_group_id"`
	RegionID     *uint   `json:"region_id"` // ignored: derived
	Status       *string `json:"status" binding:"omitempty,oneof=active inactive graduated"`
}

// GetStudents lists students within the caller's scope, optionally narrowed
// by explicit filters that must stay inside the scope.
func GetStudents(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityStudent, rls.OpRead); err != nil {
		abortForbidden(c, err)
		return
	}

	universityID, hasUniversity, ok := parseUintQuery(c, "university_id")
	if !ok {
		return
	}
	smallGroupID, hasSmallGroup, ok := parseUintQuery(c, "small_group_id")
	if !ok {
		return
	}
	if !checkScopeFilter(c, scope, rls.FieldUniversityID, universityID, hasUniversity) {
		return
	}
	if !checkScopeFilter(c, scope, rls.FieldSmallGroupID, smallGroupID, hasSmallGroup) {
		return
	}

	q := rls.Scoped(db.Model(&models.Student{}).Where("delete_at IS NULL"),
		scope, studentScopeFields...)
	if hasUniversity {
		q = q.Where("university_id = ?", universityID)
	}
	if hasSmallGroup {
		q = q.Where("small_group_id = ?", smallGroupID)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
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
	var students []models.Student
	if err := q.Order("student_id DESC").Limit(limit).Offset(offset).
		Find(&students).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": students, "total": total})
}

func GetStudent(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityStudent, rls.OpRead); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var student models.Student
	if err := db.Preload("University").Preload("SmallGroup").
		Where("student_id = ? AND delete_at IS NULL", id).
		First(&student).Error; err != nil {
		fetchError(c, err)
		return
	}
	// Fetch-by-id bypasses list filtering; the row check runs here.
	if !rls.CanAccess(scope, studentHierarchyIDs(student)) {
		abortNotFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"student": student})
}

func CreateStudent(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityStudent, rls.OpCreate); err != nil {
		abortForbidden(c, err)
		return
	}

	var req createStudentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if err := rls.CheckExplicitFilter(scope, rls.FieldUniversityID, req.UniversityID); err != nil {
		abortForbidden(c, err)
		return
	}
	if req.SmallGroupID != nil {
		if err := rls.CheckExplicitFilter(scope, rls.FieldSmallGroupID, *req.SmallGroupID); err != nil {
			abortForbidden(c, err)
			return
		}
		var group models.SmallGroup
		if err := db.Where("small_group_id = ? AND university_id = ? AND delete_at IS NULL",
			*req.SmallGroupID, req.UniversityID).First(&group).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "small group does not belong to the university"})
			return
		}
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

	status := req.Status
	if status == "" {
		status = "active"
	}
	now := time.Now()
	student := models.Student{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		Gender:       req.Gender,
		UniversityID: req.UniversityID,
		SmallGroupID: req.SmallGroupID,
		RegionID:     regionID,
		Status:       status,
		CreateAt:     &now,
	}
	if err := db.Create(&student).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"student": student})
}

func UpdateStudent(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityStudent, rls.OpUpdate); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var student models.Student
	if err := db.Where("student_id = ? AND delete_at IS NULL", id).
		First(&student).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, studentHierarchyIDs(student)) {
		abortNotFound(c)
		return
	}

	var req updateStudentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if req.FirstName != nil {
		student.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		student.LastName = *req.LastName
	}
	if req.Email != nil {
		student.Email = req.Email
	}
	if req.Phone != nil {
		student.Phone = req.Phone
	}
	if req.Gender != nil {
		student.Gender = *req.Gender
	}
	if req.Status != nil {
		student.Status = *req.Status
	}
	if req.UniversityID != nil && *req.UniversityID != student.UniversityID {
		if err := rls.CheckExplicitFilter(scope, rls.FieldUniversityID, *req.UniversityID); err != nil {
			abortForbidden(c, err)
			return
		}
		regionID, err := services.UniversityRegion(db, *req.UniversityID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown university"})
			return
		}
		student.UniversityID = *req.UniversityID
		student.RegionID = regionID
		// Moving universities invalidates the small group unless re-supplied.
		student.SmallGroupID = nil
	}
	if req.SmallGroupID != nil {
		if err := rls.CheckExplicitFilter(scope, rls.FieldSmallGroupID, *req.SmallGroupID); err != nil {
			abortForbidden(c, err)
			return
		}
		var group models.SmallGroup
		if err := db.Where("small_group_id = ? AND university_id = ? AND delete_at IS NULL",
			*req.SmallGroupID, student.UniversityID).First(&group).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "small group does not belong to the university"})
			return
		}
		student.SmallGroupID = req.SmallGroupID
	}
	// req.RegionID ignored: region is always derived from the university.

	now := time.Now()
	student.UpdateAt = &now
	if err := db.Save(&student).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"student": student})
}

func DeleteStudent(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityStudent, rls.OpDelete); err != nil {
		abortForbidden(c, err)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var student models.Student
	if err := db.Where("student_id = ? AND delete_at IS NULL", id).
		First(&student).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, studentHierarchyIDs(student)) {
		abortNotFound(c)
		return
	}

	if err := db.Model(&student).Update("delete_at", time.Now()).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
