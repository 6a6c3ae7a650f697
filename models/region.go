package models

import "time"

// Region is the root of the student-track hierarchy.
type Region struct {
	RegionID uint       `gorm:"primaryKey;column:region_id" json:"region_id"`
	Name     string     `gorm:"column:name" json:"name"`
	CreateAt *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// Province is administrative reference data for the graduate track. Read-only.
type Province struct {
	ProvinceID uint   `gorm:"primaryKey;column:province_id" json:"province_id"`
	Name       string `gorm:"column:name" json:"name"`
}

func (Region) TableName() string {
	return "regions"
}

func (Province) TableName() string {
	return "provinces"
}
