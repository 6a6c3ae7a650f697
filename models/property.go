package models

import "time"

// Property is a ministry asset (instrument, building, equipment) held by a
// university chapter. RegionID is derived from the university on every write.
type Property struct {
	PropertyID   uint       `gorm:"primaryKey;column:property_id" json:"property_id"`
	Name         string     `gorm:"column:name" json:"name"`
	Category     string     `gorm:"column:category" json:"category"`
	UniversityID uint       `gorm:"column:university_id" json:"university_id"`
	RegionID     uint       `gorm:"column:region_id" json:"region_id"`
	AcquiredAt   *time.Time `gorm:"column:acquired_at" json:"acquired_at,omitempty"`
	Value        *float64   `gorm:"column:value" json:"value,omitempty"`
	CreateAt     *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt     *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt     *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	University University `gorm:"foreignKey:UniversityID" json:"university,omitempty"`
}

func (Property) TableName() string {
	return "properties"
}
