package models

import "time"

// SmallGroup is a weekly cell group inside a university.
// RegionID always mirrors the owning university's region; it is recomputed
// whenever UniversityID changes and never taken from caller input.
type SmallGroup struct {
	SmallGroupID uint       `gorm:"primaryKey;column:small_group_id" json:"small_group_id"`
	Name         string     `gorm:"column:name" json:"name"`
	UniversityID uint       `gorm:"column:university_id" json:"university_id"`
	RegionID     uint       `gorm:"column:region_id" json:"region_id"`
	LeaderUserID *uint      `gorm:"column:leader_user_id" json:"leader_user_id,omitempty"`
	CreateAt     *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt     *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt     *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	University University `gorm:"foreignKey:UniversityID" json:"university,omitempty"`
}

func (SmallGroup) TableName() string {
	return "small_groups"
}
