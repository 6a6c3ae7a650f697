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

/* ==========================
   Request payloads
   ========================== */

type createNotifReq struct {
	UserID       uint    `json:"user_id" binding:"required"`
	Title        string  `json:"title" binding:"required"`
	Message      string  `json:"message" binding:"required"`
	Type         string  `json:"type" binding:"required,oneof=email sms in_app"`
	EventType    string  `json:"event_type" binding:"required"`
	SmallGroupID *uint   `json:"small_group_id"`
	UniversityID *uint   `json:"university_id"`
	RegionID     *uint   `json:"region_id"`
	Metadata     *string `json:"metadata"`
}

type attendanceMissReq struct {
	SmallGroupID  uint     `json:"small_group_id" binding:"required"`
	AbsentMembers []string `json:"absent_members" binding:"required,min=1"`
	Date          string   `json:"date"` // YYYY-MM-DD, defaults to today
}

/* ==========================
   Reads
   ========================== */

// GetNotifications lists notifications visible to the caller under the
// routing overlay (event-type narrowing per scope level) on top of the
// hierarchy filter.
func GetNotifications(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	var explicitUserID *uint
	if uid, hasUID, ok := parseUintQuery(c, "user_id"); !ok {
		return
	} else if hasUID {
		explicitUserID = &uid
	}

	q, err := services.ScopeNotificationQuery(
		db.Model(&models.Notification{}), scope, explicitUserID)
	if err != nil {
		abortForbidden(c, err)
		return
	}

	unreadOnly := strings.TrimSpace(c.Query("unreadOnly"))
	if unreadOnly == "1" || strings.EqualFold(unreadOnly, "true") {
		q = q.Where("read_at IS NULL")
	}
	if eventType := strings.TrimSpace(c.Query("event_type")); eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}

	limit, offset := pagination(c)
	var items []models.Notification
	if err := q.Order("create_at DESC").Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		abortServer(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func GetNotificationCounter(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	q, err := services.ScopeNotificationQuery(
		db.Model(&models.Notification{}), scope, nil)
	if err != nil {
		abortForbidden(c, err)
		return
	}

	var n int64
	if err := q.Where("read_at IS NULL").Count(&n).Error; err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

/* ==========================
   Writes
   ========================== */

// CreateNotification is the generic producer endpoint for coordinators.
func CreateNotification(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	if err := rls.CanPerform(scope, rls.EntityNotification, rls.OpCreate); err != nil {
		abortForbidden(c, err)
		return
	}

	var req createNotifReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	// The pins must stay inside the producer's own scope.
	if req.RegionID != nil {
		if err := rls.CheckExplicitFilter(scope, rls.FieldRegionID, *req.RegionID); err != nil {
			abortForbidden(c, err)
			return
		}
	}
	if req.UniversityID != nil {
		if err := rls.CheckExplicitFilter(scope, rls.FieldUniversityID, *req.UniversityID); err != nil {
			abortForbidden(c, err)
			return
		}
	}
	if req.SmallGroupID != nil {
		if err := rls.CheckExplicitFilter(scope, rls.FieldSmallGroupID, *req.SmallGroupID); err != nil {
			abortForbidden(c, err)
			return
		}
	}

	var recipient models.User
	if err := db.Where("user_id = ? AND delete_at IS NULL", req.UserID).
		First(&recipient).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown recipient"})
		return
	}

	n := models.Notification{
		UserID:       req.UserID,
		Title:        req.Title,
		Message:      req.Message,
		Type:         req.Type,
		EventType:    req.EventType,
		SmallGroupID: req.SmallGroupID,
		UniversityID: req.UniversityID,
		RegionID:     req.RegionID,
		Status:       models.NotificationStatusPending,
		Metadata:     req.Metadata,
		CreateAt:     time.Now(),
	}
	if err := db.Create(&n).Error; err != nil {
		abortServer(c, err)
		return
	}

	services.Deliver(c.Request.Context(), db, &n, recipient.Email)
	c.JSON(http.StatusOK, gin.H{"ok": true, "notification_id": n.NotificationID})
}

// NotifyAttendanceMiss records an attendance-miss event for a small group and
// routes the notification to the group's leader.
// POST /api/v1/notifications/events/attendance-miss
func NotifyAttendanceMiss(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	// The graduate track has no small groups to report on.
	if scope.Level == rls.LevelGraduateSmallGroup {
		abortForbidden(c, rls.ErrCapabilityDenied)
		return
	}

	var req attendanceMissReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}
	if err := rls.CheckExplicitFilter(scope, rls.FieldSmallGroupID, req.SmallGroupID); err != nil {
		abortForbidden(c, err)
		return
	}

	var group models.SmallGroup
	if err := db.Where("small_group_id = ? AND delete_at IS NULL", req.SmallGroupID).
		First(&group).Error; err != nil {
		fetchError(c, err)
		return
	}
	if !rls.CanAccess(scope, smallGroupHierarchyIDs(group)) {
		abortNotFound(c)
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	n, err := services.NotifyAttendanceMiss(c.Request.Context(), db, group, req.AbsentMembers, date)
	if err != nil {
		abortServer(c, err)
		return
	}
	if n == nil {
		// Recipient opted out of attendance alerts.
		c.JSON(http.StatusOK, gin.H{"ok": true, "suppressed": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "notification_id": n.NotificationID})
}

// MarkNotificationRead sets read_at on the caller's own notification. For a
// smallgroup recipient reading an attendance_miss this also moves the status
// to marked and produces the university acknowledgment (best effort).
func MarkNotificationRead(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	n, err := services.MarkNotificationRead(c.Request.Context(), db, scope, id)
	if err != nil {
		fetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "notification": n})
}

func MarkAllNotificationsRead(c *gin.Context) {
	db := getDB()
	uid, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Bulk mark never triggers acknowledgments; those fire only on an
	// explicit per-notification read.
	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", uid).
		Update("read_at", time.Now()).Error; err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteNotification removes a notification. Recipients may delete their
// own; superadmin may delete any.
func DeleteNotification(c *gin.Context) {
	db := getDB()
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var n models.Notification
	if err := db.Where("notification_id = ?", id).First(&n).Error; err != nil {
		fetchError(c, err)
		return
	}
	if n.UserID != scope.UserID && scope.Level != rls.LevelSuperadmin {
		abortNotFound(c)
		return
	}

	if err := db.Delete(&n).Error; err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
