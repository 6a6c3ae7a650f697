package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/services"
)

type preferencesReq struct {
	AttendanceAlerts *bool `json:"attendance_alerts" binding:"required"`
	EventReminders   *bool `json:"event_reminders" binding:"required"`
	InAppEnabled     *bool `json:"in_app_enabled" binding:"required"`
}

// GetNotificationPreferences returns the caller's delivery preferences,
// creating the default row on first access.
func GetNotificationPreferences(c *gin.Context) {
	db := getDB()
	uid, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	prefs, err := services.LoadPreferences(db, uid)
	if err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdateNotificationPreferences replaces the caller's delivery preferences.
// Preferences are strictly per-user; nobody edits another user's row.
func UpdateNotificationPreferences(c *gin.Context) {
	db := getDB()
	uid, ok := getCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req preferencesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	prefs, err := services.LoadPreferences(db, uid)
	if err != nil {
		abortServer(c, err)
		return
	}

	prefs.AttendanceAlerts = *req.AttendanceAlerts
	prefs.EventReminders = *req.EventReminders
	prefs.InAppEnabled = *req.InAppEnabled
	now := time.Now()
	prefs.UpdateAt = &now

	if err := db.Save(prefs).Error; err != nil {
		abortServer(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}
