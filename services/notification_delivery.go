package services

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"strings"

	"gorm.io/gorm"

	"campus-ministry-api/config"
	"campus-ministry-api/models"
)

// Deliver moves a pending notification to sent or failed. in_app rows are
// sent the moment they exist; email rows go out asynchronously and never
// block or fail the producing request; sms rows stay pending for the
// external gateway to pick up.
func Deliver(ctx context.Context, db *gorm.DB, n *models.Notification, recipientEmail string) {
	switch n.Type {
	case models.NotificationTypeInApp:
		setDeliveryStatus(db, n.NotificationID, models.NotificationStatusSent)
	case models.NotificationTypeEmail:
		bg := persistentContext(ctx)
		id := n.NotificationID
		subject := n.Title
		body := buildEmailHTML(n.Title, n.Message)
		go func() {
			status := models.NotificationStatusSent
			if err := config.SendMail([]string{recipientEmail}, subject, body); err != nil {
				log.Printf("notification %d email delivery failed: %v", id, err)
				status = models.NotificationStatusFailed
			}
			setDeliveryStatus(db.WithContext(bg), id, status)
		}()
	case models.NotificationTypeSMS:
		// The SMS gateway is an external collaborator; it flips the status
		// itself once it picks the row up.
	}
}

func setDeliveryStatus(db *gorm.DB, notificationID uint, status string) {
	// The read state machine may already have marked the row; delivery must
	// not clobber that.
	if err := db.Model(&models.Notification{}).
		Where("notification_id = ? AND status = ?", notificationID, models.NotificationStatusPending).
		Update("status", status).Error; err != nil {
		log.Printf("notification %d status update failed: %v", notificationID, err)
	}
}

func buildEmailHTML(subject, message string) string {
	escapedSubject := template.HTMLEscapeString(subject)
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px;">
    <p style="margin:0 0 16px 0;font-size:18px;line-height:1.6;color:#111827;font-weight:600;">%s</p>
    <p style="margin:0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedSubject, escapedMessage)
}
