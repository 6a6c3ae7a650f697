// Package rls derives per-request row filters from the caller's position in
// the organizational hierarchy. Every scoped read and write in the API goes
// through FiltersFor/Scoped for list queries and CanAccess for single rows.
package rls

import "errors"

var (
	// ErrCapabilityDenied means the scope level is categorically barred from
	// the operation, regardless of which rows are involved.
	ErrCapabilityDenied = errors.New("operation not permitted for this scope")
	// ErrScopeViolation means a row or an explicit filter parameter falls
	// outside the caller's pinned hierarchy.
	ErrScopeViolation = errors.New("requested data is outside the caller's scope")
)

// Level is the closed set of scope levels the system supports.
type Level string

const (
	LevelSuperadmin         Level = "superadmin"
	LevelNational           Level = "national"
	LevelRegion             Level = "region"
	LevelUniversity         Level = "university"
	LevelSmallGroup         Level = "smallgroup"
	LevelGraduateSmallGroup Level = "graduatesmallgroup"
)

// levelPrecedence orders multi-assignment resolution: the lowest value wins.
// smallgroup beats graduatesmallgroup so the tie between the two tracks is
// deterministic.
var levelPrecedence = map[Level]int{
	LevelSuperadmin:         0,
	LevelNational:           1,
	LevelRegion:             2,
	LevelUniversity:         3,
	LevelSmallGroup:         4,
	LevelGraduateSmallGroup: 5,
}

// UserScope pins a principal to one node of the hierarchy. A scope at level L
// carries the identifier for L and every ancestor of L, never a descendant.
// Build one through the constructors; a hand-rolled scope with a missing pin
// fails closed everywhere.
type UserScope struct {
	UserID          uint
	Level           Level
	RegionID        *uint
	UniversityID    *uint
	SmallGroupID    *uint
	GraduateGroupID *uint
}

// Unrestricted reports whether the scope has full visibility. Superadmin and
// national are the only two such levels.
func (s UserScope) Unrestricted() bool {
	return s.Level == LevelSuperadmin || s.Level == LevelNational
}

func (s UserScope) atLeastRegion() bool {
	return s.Unrestricted() || s.Level == LevelRegion
}

func Superadmin(userID uint) UserScope {
	return UserScope{UserID: userID, Level: LevelSuperadmin}
}

func National(userID uint) UserScope {
	return UserScope{UserID: userID, Level: LevelNational}
}

func RegionScope(userID, regionID uint) UserScope {
	return UserScope{UserID: userID, Level: LevelRegion, RegionID: &regionID}
}

func UniversityScope(userID, regionID, universityID uint) UserScope {
	return UserScope{
		UserID:       userID,
		Level:        LevelUniversity,
		RegionID:     &regionID,
		UniversityID: &universityID,
	}
}

func SmallGroupScope(userID, regionID, universityID, smallGroupID uint) UserScope {
	return UserScope{
		UserID:       userID,
		Level:        LevelSmallGroup,
		RegionID:     &regionID,
		UniversityID: &universityID,
		SmallGroupID: &smallGroupID,
	}
}

func GraduateGroupScope(userID, regionID, graduateGroupID uint) UserScope {
	return UserScope{
		UserID:          userID,
		Level:           LevelGraduateSmallGroup,
		RegionID:        &regionID,
		GraduateGroupID: &graduateGroupID,
	}
}
