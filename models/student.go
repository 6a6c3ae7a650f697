package models

import "time"

type Student struct {
	StudentID    uint    `gorm:"primaryKey;column:student_id" json:"student_id"`
	FirstName    string  `gorm:"column:first_name" json:"first_name"`
	LastName     string  `gorm:"column:last_name" json:"last_name"`
	Email        *string `gorm:"column:email" json:"email,omitempty"`
	Phone        *string `gorm:"column:phone" json:"phone,omitempty"`
	Gender       string  `gorm:"column:gender" json:"gender"`
	UniversityID uint    `gorm:"column:university_id" json:"university_id"`
	SmallGroupID *uint   `gorm:"column:small_group_id" json:"small_group_id,omitempty"`
	// RegionID is derived from the assigned university on every write.
	RegionID uint       `gorm:"column:region_id" json:"region_id"`
	Status   string     `gorm:"column:status" json:"status"` // active|inactive|graduated
	CreateAt *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	University University  `gorm:"foreignKey:UniversityID" json:"university,omitempty"`
	SmallGroup *SmallGroup `gorm:"foreignKey:SmallGroupID" json:"small_group,omitempty"`
}

func (Student) TableName() string {
	return "students"
}
