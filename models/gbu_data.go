package models

import "time"

// GBUData is one strategic reporting row per university per term.
// RegionID is derived from the university on every write.
type GBUData struct {
	GBUDataID       uint       `gorm:"primaryKey;column:gbu_data_id" json:"gbu_data_id"`
	UniversityID    uint       `gorm:"column:university_id" json:"university_id"`
	RegionID        uint       `gorm:"column:region_id" json:"region_id"`
	Year            int        `gorm:"column:year" json:"year"`
	Term            int        `gorm:"column:term" json:"term"`
	StudentCount    int        `gorm:"column:student_count" json:"student_count"`
	SmallGroupCount int        `gorm:"column:small_group_count" json:"small_group_count"`
	GraduateCount   int        `gorm:"column:graduate_count" json:"graduate_count"`
	Notes           *string    `gorm:"column:notes" json:"notes,omitempty"`
	CreateAt        *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt        *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt        *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	University University `gorm:"foreignKey:UniversityID" json:"university,omitempty"`
}

func (GBUData) TableName() string {
	return "gbu_data"
}
