package models

import (
	"time"
)

type User struct {
	UserID   uint       `gorm:"primaryKey;column:user_id" json:"user_id"`
	Name     string     `gorm:"column:name" json:"name"`
	Email    string     `gorm:"column:email;unique" json:"email"`
	Phone    *string    `gorm:"column:phone" json:"phone,omitempty"`
	Password string     `gorm:"column:password" json:"-"`
	CreateAt *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Roles []UserRole `gorm:"foreignKey:UserID" json:"roles,omitempty"`
}

// UserRole is one scope assignment: the level plus the hierarchy node the
// user is pinned to at that level. A user normally holds a single row; the
// resolver handles zero and multiple rows deterministically.
type UserRole struct {
	UserRoleID      uint       `gorm:"primaryKey;column:user_role_id" json:"user_role_id"`
	UserID          uint       `gorm:"column:user_id" json:"user_id"`
	Scope           string     `gorm:"column:scope" json:"scope"`
	RegionID        *uint      `gorm:"column:region_id" json:"region_id,omitempty"`
	UniversityID    *uint      `gorm:"column:university_id" json:"university_id,omitempty"`
	SmallGroupID    *uint      `gorm:"column:small_group_id" json:"small_group_id,omitempty"`
	GraduateGroupID *uint      `gorm:"column:graduate_group_id" json:"graduate_group_id,omitempty"`
	CreateAt        *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt        *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt        *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// TableName overrides
func (User) TableName() string {
	return "users"
}

func (UserRole) TableName() string {
	return "user_roles"
}
