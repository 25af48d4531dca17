package model

import (
	"time"

	"github.com/google/uuid"
)

type InquiryEventType string

const (
	InquiryEventCreated   InquiryEventType = "created"
	InquiryEventEdited    InquiryEventType = "edited"
	InquiryEventApproved  InquiryEventType = "approved"
	InquiryEventRejected  InquiryEventType = "rejected"
	InquiryEventCancelled InquiryEventType = "cancelled"
)

// InquiryEvent is an append-only audit record of one inquiry transition.
type InquiryEvent struct {
	ID          uuid.UUID        `json:"id"`
	InquiryID   int64            `json:"inquiry_id"`
	EventType   InquiryEventType `json:"event_type"`
	ActorUserID int64            `json:"actor_user_id"`
	Metadata    map[string]any   `json:"metadata"`
	CreatedAt   time.Time        `json:"created_at"`
}
