package rls

import (
	"campus-ministry-api/models"

	"gorm.io/gorm"
)

// ResolveScope maps an authenticated principal to its scope. A nil result
// with a nil error means "no usable assignment"; callers must treat it as
// 401 and stop. A role row pointing at a deleted or missing hierarchy node
// resolves to nil as well: resolution fails closed, never falls back to an
// unscoped view.
func ResolveScope(db *gorm.DB, userID uint) (*UserScope, error) {
	var roles []models.UserRole
	if err := db.Where("user_id = ? AND delete_at IS NULL", userID).
		Find(&roles).Error; err != nil {
		return nil, err
	}

	role := SelectAssignment(roles)
	if role == nil {
		return nil, nil
	}

	switch Level(role.Scope) {
	case LevelSuperadmin:
		scope := Superadmin(userID)
		return &scope, nil
	case LevelNational:
		scope := National(userID)
		return &scope, nil
	case LevelRegion:
		if role.RegionID == nil {
			return nil, nil
		}
		var region models.Region
		if err := db.Where("region_id = ? AND delete_at IS NULL", *role.RegionID).
			First(&region).Error; err != nil {
			return nilOnMissing(err)
		}
		scope := RegionScope(userID, region.RegionID)
		return &scope, nil
	case LevelUniversity:
		if role.UniversityID == nil {
			return nil, nil
		}
		var university models.University
		if err := db.Where("university_id = ? AND delete_at IS NULL", *role.UniversityID).
			First(&university).Error; err != nil {
			return nilOnMissing(err)
		}
		scope := UniversityScope(userID, university.RegionID, university.UniversityID)
		return &scope, nil
	case LevelSmallGroup:
		if role.SmallGroupID == nil {
			return nil, nil
		}
		var group models.SmallGroup
		if err := db.Where("small_group_id = ? AND delete_at IS NULL", *role.SmallGroupID).
			First(&group).Error; err != nil {
			return nilOnMissing(err)
		}
		scope := SmallGroupScope(userID, group.RegionID, group.UniversityID, group.SmallGroupID)
		return &scope, nil
	case LevelGraduateSmallGroup:
		if role.GraduateGroupID == nil {
			return nil, nil
		}
		var group models.GraduateSmallGroup
		if err := db.Where("graduate_group_id = ? AND delete_at IS NULL", *role.GraduateGroupID).
			First(&group).Error; err != nil {
			return nilOnMissing(err)
		}
		scope := GraduateGroupScope(userID, group.RegionID, group.GraduateGroupID)
		return &scope, nil
	}
	return nil, nil
}

// SelectAssignment picks the winning role row when a user holds several:
// superadmin > national > region > university > smallgroup >
// graduatesmallgroup, ties broken by lowest row id. Rows with an unknown
// scope string are skipped.
func SelectAssignment(roles []models.UserRole) *models.UserRole {
	var best *models.UserRole
	bestRank := 0
	for i := range roles {
		rank, known := levelPrecedence[Level(roles[i].Scope)]
		if !known {
			continue
		}
		if best == nil || rank < bestRank ||
			(rank == bestRank && roles[i].UserRoleID < best.UserRoleID) {
			best = &roles[i]
			bestRank = rank
		}
	}
	return best
}

func nilOnMissing(err error) (*UserScope, error) {
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return nil, err
}
