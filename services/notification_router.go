package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
)

// AttendanceMissMetadata is the serialized payload of an attendance_miss
// notification.
type AttendanceMissMetadata struct {
	SmallGroup    string   `json:"small_group"`
	Leader        string   `json:"leader"`
	AbsentMembers []string `json:"absent_members"`
	TotalAbsent   int      `json:"total_absent"`
	Date          string   `json:"date"`
}

// AcknowledgmentMetadata summarizes an acknowledged attendance miss for the
// owning university.
type AcknowledgmentMetadata struct {
	SmallGroup     string    `json:"small_group"`
	Leader         string    `json:"leader"`
	TotalAbsent    int       `json:"total_absent"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

// ScopeNotificationQuery applies the routing overlay for notification reads.
// This narrows by event type on top of the hierarchy filter, so it runs in
// addition to rls.Scoped, not instead of it:
//
//	smallgroup  -> attendance_miss only, own small group
//	university  -> university_acknowledgment only, own university
//	region      -> all event types, own region
//	national    -> everything
//	superadmin  -> everything, optionally narrowed to one recipient
//
// Non-superadmin callers supplying an explicit recipient id other than their
// own get a scope violation.
func ScopeNotificationQuery(q *gorm.DB, scope rls.UserScope, explicitUserID *uint) (*gorm.DB, error) {
	if explicitUserID != nil && scope.Level != rls.LevelSuperadmin && *explicitUserID != scope.UserID {
		return nil, rls.ErrScopeViolation
	}
	if explicitUserID != nil {
		q = q.Where("user_id = ?", *explicitUserID)
	}

	q = rls.Scoped(q, scope,
		rls.FieldRegionID, rls.FieldUniversityID, rls.FieldSmallGroupID)

	switch scope.Level {
	case rls.LevelSmallGroup:
		q = q.Where("event_type = ?", models.EventAttendanceMiss)
	case rls.LevelUniversity:
		q = q.Where("event_type = ?", models.EventUniversityAck)
	case rls.LevelGraduateSmallGroup:
		// No routed event types target the graduate track; fall back to the
		// caller's own notifications.
		q = q.Where("user_id = ?", scope.UserID)
	}
	return q, nil
}

// NotifyAttendanceMiss records one attendance_miss notification addressed to
// the small group's leader, pinned to the group's position in the hierarchy.
// Respects the recipient's attendance_alerts preference.
func NotifyAttendanceMiss(ctx context.Context, db *gorm.DB, group models.SmallGroup, absentees []string, date time.Time) (*models.Notification, error) {
	if group.LeaderUserID == nil {
		return nil, fmt.Errorf("small group %d has no leader to notify", group.SmallGroupID)
	}

	prefs, err := LoadPreferences(db, *group.LeaderUserID)
	if err != nil {
		return nil, err
	}
	if !prefs.AttendanceAlerts {
		return nil, nil
	}

	var leader models.User
	if err := db.Select("user_id, name, email").
		Where("user_id = ? AND delete_at IS NULL", *group.LeaderUserID).
		First(&leader).Error; err != nil {
		return nil, err
	}

	meta, err := json.Marshal(AttendanceMissMetadata{
		SmallGroup:    group.Name,
		Leader:        leader.Name,
		AbsentMembers: absentees,
		TotalAbsent:   len(absentees),
		Date:          date.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	notifType := models.NotificationTypeEmail
	if prefs.InAppEnabled {
		notifType = models.NotificationTypeInApp
	}

	metaStr := string(meta)
	n := models.Notification{
		UserID:       leader.UserID,
		Title:        "Attendance miss in " + group.Name,
		Message:      fmt.Sprintf("%d member(s) of %s were absent on %s.", len(absentees), group.Name, date.Format("2006-01-02")),
		Type:         notifType,
		EventType:    models.EventAttendanceMiss,
		SmallGroupID: &group.SmallGroupID,
		UniversityID: &group.UniversityID,
		RegionID:     &group.RegionID,
		Status:       models.NotificationStatusPending,
		Metadata:     &metaStr,
		CreateAt:     time.Now(),
	}
	if err := db.Create(&n).Error; err != nil {
		return nil, err
	}

	Deliver(ctx, db, &n, leader.Email)
	return &n, nil
}

// MarkNotificationRead is the primary mutation of the read state machine.
// Setting read_at is idempotent (last write wins). When a smallgroup-scoped
// recipient reads an attendance_miss notification, the status moves to
// "marked" and one acknowledgment notification is produced for the owning
// university. That side effect is best effort: logged on failure, never
// affecting the result of the primary mutation.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, scope rls.UserScope, notificationID uint) (*models.Notification, error) {
	var n models.Notification
	if err := db.Where("notification_id = ? AND user_id = ?", notificationID, scope.UserID).
		First(&n).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{"read_at": now}

	acknowledges := scope.Level == rls.LevelSmallGroup &&
		n.EventType == models.EventAttendanceMiss
	if acknowledges {
		updates["status"] = models.NotificationStatusMarked
	}

	if err := db.Model(&models.Notification{}).
		Where("notification_id = ?", n.NotificationID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	n.ReadAt = &now
	if acknowledges {
		n.Status = models.NotificationStatusMarked
	}

	if acknowledges {
		if err := createUniversityAcknowledgment(persistentContext(ctx), db, n); err != nil {
			log.Printf("acknowledgment notification for %d failed: %v", n.NotificationID, err)
		}
	}

	return &n, nil
}

// createUniversityAcknowledgment produces the downstream notification for the
// university that owns the acknowledged small group. At most one per
// originating notification: a second read of the same notification is a
// no-op here.
func createUniversityAcknowledgment(ctx context.Context, db *gorm.DB, orig models.Notification) error {
	if orig.UniversityID == nil {
		return fmt.Errorf("notification %d carries no university pin", orig.NotificationID)
	}

	var existing int64
	if err := db.Model(&models.Notification{}).
		Where("origin_notification_id = ? AND event_type = ?",
			orig.NotificationID, models.EventUniversityAck).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	// Address the acknowledgment to the university-scope assignment for the
	// owning university; lowest role row wins when there are several.
	var role models.UserRole
	if err := db.Where("scope = ? AND university_id = ? AND delete_at IS NULL",
		string(rls.LevelUniversity), *orig.UniversityID).
		Order("user_role_id ASC").
		First(&role).Error; err != nil {
		return fmt.Errorf("no university recipient for university %d: %w", *orig.UniversityID, err)
	}

	var srcMeta AttendanceMissMetadata
	if orig.Metadata != nil {
		_ = json.Unmarshal([]byte(*orig.Metadata), &srcMeta)
	}

	ackTime := time.Now()
	if orig.ReadAt != nil {
		ackTime = *orig.ReadAt
	}
	meta, err := json.Marshal(AcknowledgmentMetadata{
		SmallGroup:     srcMeta.SmallGroup,
		Leader:         srcMeta.Leader,
		TotalAbsent:    srcMeta.TotalAbsent,
		AcknowledgedAt: ackTime,
	})
	if err != nil {
		return err
	}

	metaStr := string(meta)
	origID := orig.NotificationID
	ack := models.Notification{
		UserID:               role.UserID,
		Title:                "Attendance miss acknowledged",
		Message:              fmt.Sprintf("%s acknowledged an attendance miss (%d absent).", srcMeta.SmallGroup, srcMeta.TotalAbsent),
		Type:                 models.NotificationTypeInApp,
		EventType:            models.EventUniversityAck,
		UniversityID:         orig.UniversityID,
		RegionID:             orig.RegionID,
		OriginNotificationID: &origID,
		Status:               models.NotificationStatusPending,
		Metadata:             &metaStr,
		CreateAt:             time.Now(),
	}
	if err := db.WithContext(ctx).Create(&ack).Error; err != nil {
		return err
	}

	Deliver(ctx, db, &ack, "")
	return nil
}

// LoadPreferences returns the user's notification preferences, creating the
// row with defaults on first read.
func LoadPreferences(db *gorm.DB, userID uint) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	err := db.Where("user_id = ?", userID).First(&prefs).Error
	if err == gorm.ErrRecordNotFound {
		prefs = models.NotificationPreferences{
			UserID:           userID,
			AttendanceAlerts: true,
			EventReminders:   true,
			InAppEnabled:     true,
		}
		if err := db.Create(&prefs).Error; err != nil {
			return nil, err
		}
		return &prefs, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}
