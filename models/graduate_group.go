package models

import "time"

// GraduateSmallGroup is the graduate-track counterpart of SmallGroup,
// pinned to a region and optionally a province.
type GraduateSmallGroup struct {
	GraduateGroupID uint       `gorm:"primaryKey;column:graduate_group_id" json:"graduate_group_id"`
	Name            string     `gorm:"column:name" json:"name"`
	RegionID        uint       `gorm:"column:region_id" json:"region_id"`
	ProvinceID      *uint      `gorm:"column:province_id" json:"province_id,omitempty"`
	CreateAt        *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt        *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt        *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Region   Region    `gorm:"foreignKey:RegionID" json:"region,omitempty"`
	Province *Province `gorm:"foreignKey:ProvinceID" json:"province,omitempty"`
}

func (GraduateSmallGroup) TableName() string {
	return "graduate_small_groups"
}
