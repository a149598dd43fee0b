package model

import (
	"time"

	"gorm.io/gorm"
)

// Deployment statuses
const (
	DeploymentPending  = "pending"
	DeploymentBuilding = "building"
	DeploymentReady    = "ready"
	DeploymentError    = "error"
	DeploymentCanceled = "canceled"
	DeploymentTimeout  = "timeout"
)

// Deployment records one publication of a business's public site
type Deployment struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	BusinessID           uint           `json:"business_id" gorm:"index;not null"`
	Provider             string         `json:"provider" gorm:"type:varchar(20);not null;default:'vercel'"`
	ProviderDeploymentID string         `json:"provider_deployment_id,omitempty" gorm:"type:varchar(255)"`
	ProjectName          string         `json:"project_name" gorm:"type:varchar(255)"`
	URL                  string         `json:"url,omitempty" gorm:"type:varchar(512)"`
	Status               string         `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ErrorMessage         string         `json:"error_message,omitempty" gorm:"type:text"`
	BundleKey            string         `json:"bundle_key,omitempty" gorm:"type:varchar(512)"`
	StartedAt            *time.Time     `json:"started_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

// Finished reports whether the deployment reached a terminal status
func (d *Deployment) Finished() bool {
	switch d.Status {
	case DeploymentReady, DeploymentError, DeploymentCanceled, DeploymentTimeout:
		return true
	}
	return false
}
