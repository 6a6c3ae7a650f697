package models

import "time"

// Notification delivery channels.
const (
	NotificationTypeEmail = "email"
	NotificationTypeSMS   = "sms"
	NotificationTypeInApp = "in_app"
)

// Notification event tags.
const (
	EventAttendanceMiss = "attendance_miss"
	EventUniversityAck  = "university_acknowledgment"
	EventReminder       = "event_reminder"
)

// Notification statuses. pending -> sent|failed is the delivery outcome;
// marked is set only when a small-group recipient reads an attendance_miss
// notification, and is terminal except for deletion.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusMarked  = "marked"
)

type Notification struct {
	NotificationID uint   `gorm:"primaryKey;column:notification_id" json:"notification_id"`
	UserID         uint   `gorm:"column:user_id" json:"user_id"`
	Title          string `gorm:"column:title" json:"title"`
	Message        string `gorm:"column:message" json:"message"`
	Type           string `gorm:"column:type" json:"type"`             // email|sms|in_app
	EventType      string `gorm:"column:event_type" json:"event_type"` // attendance_miss|university_acknowledgment|event_reminder
	// Hierarchy pins carry the ORIGINATING scope of the event, not the
	// recipient's scope, so reads can filter without re-deriving it.
	SmallGroupID *uint `gorm:"column:small_group_id" json:"small_group_id,omitempty"`
	UniversityID *uint `gorm:"column:university_id" json:"university_id,omitempty"`
	RegionID     *uint `gorm:"column:region_id" json:"region_id,omitempty"`
	// OriginNotificationID dedupes acknowledgments: at most one per
	// originating attendance_miss notification.
	OriginNotificationID *uint      `gorm:"column:origin_notification_id" json:"origin_notification_id,omitempty"`
	Status               string     `gorm:"column:status" json:"status"` // pending|sent|failed|marked
	ReadAt               *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	Metadata             *string    `gorm:"column:metadata" json:"metadata,omitempty"`
	CreateAt             time.Time  `gorm:"column:create_at" json:"created_at"`
	UpdateAt             *time.Time `gorm:"column:update_at" json:"-"`
}

func (Notification) TableName() string { return "notifications" }

// IsRead reports whether the recipient has read the notification,
// independently of the delivery status.
func (n *Notification) IsRead() bool { return n.ReadAt != nil }

// NotificationPreferences is one row per user, created lazily with all flags
// on during the first read and upserted only by the owner.
type NotificationPreferences struct {
	UserID           uint       `gorm:"primaryKey;column:user_id" json:"user_id"`
	AttendanceAlerts bool       `gorm:"column:attendance_alerts" json:"attendance_alerts"`
	EventReminders   bool       `gorm:"column:event_reminders" json:"event_reminders"`
	InAppEnabled     bool       `gorm:"column:in_app_enabled" json:"in_app_enabled"`
	CreateAt         *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt         *time.Time `gorm:"column:update_at" json:"update_at"`
}

func (NotificationPreferences) TableName() string { return "notification_preferences" }
