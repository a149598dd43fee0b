package model

import (
	"time"

	"gorm.io/gorm"
)

// Conversation statuses
const (
	ConversationActive = "active"
	ConversationClosed = "closed"
)

// Conversation is a chatbot session. Messages holds the JSON encoded transcript.
type Conversation struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	BusinessID    uint           `json:"business_id" gorm:"not null;uniqueIndex:idx_conversation_session,priority:1"`
	SessionID     string         `json:"session_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_conversation_session,priority:2"`
	VisitorName   string         `json:"visitor_name" gorm:"type:varchar(255)"`
	VisitorEmail  string         `json:"visitor_email" gorm:"type:varchar(255)"`
	Messages      string         `json:"messages" gorm:"type:text;not null;default:'[]'"`
	MessageCount  int            `json:"message_count" gorm:"not null;default:0"`
	Status        string         `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	LastMessageAt *time.Time     `json:"last_message_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
