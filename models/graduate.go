package models

import "time"

// Graduate has no region column; graduate-track rows are scoped through
// their graduate small group only.
type Graduate struct {
	GraduateID      uint       `gorm:"primaryKey;column:graduate_id" json:"graduate_id"`
	FirstName       string     `gorm:"column:first_name" json:"first_name"`
	LastName        string     `gorm:"column:last_name" json:"last_name"`
	Email           *string    `gorm:"column:email" json:"email,omitempty"`
	Phone           *string    `gorm:"column:phone" json:"phone,omitempty"`
	GraduateGroupID uint       `gorm:"column:graduate_group_id" json:"graduate_group_id"`
	ProvinceID      *uint      `gorm:"column:province_id" json:"province_id,omitempty"`
	Employer        *string    `gorm:"column:employer" json:"employer,omitempty"`
	CreateAt        *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt        *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt        *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	GraduateGroup GraduateSmallGroup `gorm:"foreignKey:GraduateGroupID" json:"graduate_group,omitempty"`
	Province      *Province          `gorm:"foreignKey:ProvinceID" json:"province,omitempty"`
}

func (Graduate) TableName() string {
	return "graduates"
}
