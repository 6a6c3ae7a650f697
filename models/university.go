package models

import "time"

type University struct {
	UniversityID uint       `gorm:"primaryKey;column:university_id" json:"university_id"`
	Name         string     `gorm:"column:name" json:"name"`
	Code         string     `gorm:"column:code" json:"code"`
	RegionID     uint       `gorm:"column:region_id" json:"region_id"`
	CreateAt     *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt     *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt     *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Region Region `gorm:"foreignKey:RegionID" json:"region,omitempty"`
}

func (University) TableName() string {
	return "universities"
}
