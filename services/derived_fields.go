package services

import (
	"campus-ministry-api/models"

	"gorm.io/gorm"
)

// UniversityRegion returns the region id of a university. Write paths for
// entities with a derived region column (Student, SmallGroup, Property,
// GBUData) call this to recompute region_id whenever university_id is set or
// changed; caller-supplied values for the derived field are overwritten,
// never validated-and-rejected.
func UniversityRegion(db *gorm.DB, universityID uint) (uint, error) {
	var university models.University
	if err := db.Select("university_id, region_id").
		Where("university_id = ? AND delete_at IS NULL", universityID).
		First(&university).Error; err != nil {
		return 0, err
	}
	return university.RegionID, nil
}
