package model

import (
	"time"

	"gorm.io/gorm"
)

// Team roles, ordered from most to least privileged
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleViewer = "viewer"
)

// Member statuses
const (
	MemberInvited = "invited"
	MemberActive  = "active"
	MemberRemoved = "removed"
)

// TeamMember associates users with businesses.
// This enables multi-tenancy by allowing users to belong to multiple businesses.
type TeamMember struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	BusinessID  uint           `json:"business_id" gorm:"index;not null"`
	UserID      *uint          `json:"user_id,omitempty" gorm:"index"`
	Email       string         `json:"email" gorm:"type:varchar(255);not null"`
	Role        string         `json:"role" gorm:"type:varchar(20);not null;default:'staff'"`
	Status      string         `json:"status" gorm:"type:varchar(20);not null;default:'invited'"`
	InviteToken string         `json:"-" gorm:"type:varchar(64);uniqueIndex"`
	JoinedAt    *time.Time     `json:"joined_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	Business *Business `json:"business,omitempty" gorm:"foreignKey:BusinessID"`
}

var roleRank = map[string]int{
	RoleOwner:  4,
	RoleAdmin:  3,
	RoleStaff:  2,
	RoleViewer: 1,
}

// ValidRole reports whether r is a known team role
func ValidRole(r string) bool {
	_, ok := roleRank[r]
	return ok
}

// RoleAtLeast reports whether role grants at least the privileges of min
func RoleAtLeast(role, min string) bool {
	return roleRank[role] >= roleRank[min] && roleRank[min] > 0
}
