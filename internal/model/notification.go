package model

import "time"

type NotificationType string

const (
	NotificationInquiryReceived  NotificationType = "inquiry_received"
	NotificationInquiryApproved  NotificationType = "inquiry_approved"
	NotificationInquiryRejected  NotificationType = "inquiry_rejected"
	NotificationInquiryCancelled NotificationType = "inquiry_cancelled"
)

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	PassID    *int64           `json:"pass_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	Archived  bool             `json:"archived"`
	RelatedID *int64           `json:"related_id"` // обычно ID заявки
	Metadata  map[string]any   `json:"metadata"`
	// ArchiveAfter - после этого момента планировщик архивирует уведомление
	ArchiveAfter *time.Time `json:"archive_after"`
	CreatedAt    time.Time  `json:"created_at"`
	ArchivedAt   *time.Time `json:"archived_at"`
}
