package model

import (
	"time"

	"gorm.io/gorm"
)

// Knowledge sources
const (
	KnowledgeManual = "manual"
	KnowledgePDF    = "pdf"
	KnowledgeText   = "text"
)

// KnowledgeBase is a free-text snippet used as chatbot context
type KnowledgeBase struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	BusinessID uint           `json:"business_id" gorm:"index;not null"`
	Title      string         `json:"title" gorm:"type:varchar(255);not null"`
	Content    string         `json:"content" gorm:"type:text;not null"`
	Category   string         `json:"category" gorm:"type:varchar(100)"`
	Source     string         `json:"source" gorm:"type:varchar(20);default:'manual'"`
	Active     bool           `json:"active" gorm:"default:true"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName keeps the singular table name used by the dashboard
func (KnowledgeBase) TableName() string {
	return "knowledge_base"
}
