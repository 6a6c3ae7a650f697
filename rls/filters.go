package rls

import "gorm.io/gorm"

// Hierarchy field names, matching entity column names.
const (
	FieldRegionID        = "region_id"
	FieldUniversityID    = "university_id"
	FieldSmallGroupID    = "small_group_id"
	FieldGraduateGroupID = "graduate_group_id"
)

// FiltersFor returns the equality constraints every query over scoped rows
// must carry for this scope. Superadmin and national get an empty map: full
// visibility. Every other level constrains exactly one field, the scope's own
// level, using the pinned identifier verbatim. Ancestor fields are never
// added; an entity may not carry them and the extra constraint would zero out
// results.
//
// A malformed scope (nil pin for its own level) yields a constraint on id 0,
// which matches no row.
func FiltersFor(scope UserScope) map[string]uint {
	switch scope.Level {
	case LevelSuperadmin, LevelNational:
		return map[string]uint{}
	case LevelRegion:
		return map[string]uint{FieldRegionID: pinned(scope.RegionID)}
	case LevelUniversity:
		return map[string]uint{FieldUniversityID: pinned(scope.UniversityID)}
	case LevelSmallGroup:
		return map[string]uint{FieldSmallGroupID: pinned(scope.SmallGroupID)}
	case LevelGraduateSmallGroup:
		return map[string]uint{FieldGraduateGroupID: pinned(scope.GraduateGroupID)}
	}
	// Unknown level: fail closed.
	return map[string]uint{FieldRegionID: 0}
}

func pinned(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

// CanAccess reports whether a single row with the given hierarchy ids is
// visible to the scope. entity holds the row's non-null hierarchy fields; a
// constrained field the row does not carry denies access. This check runs on
// every fetch-by-id path in addition to list filtering, since a record
// fetched by numeric id bypasses list filters entirely.
func CanAccess(scope UserScope, entity map[string]uint) bool {
	for field, want := range FiltersFor(scope) {
		got, ok := entity[field]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Scoped applies the scope's filters to a query, restricted to the hierarchy
// fields the entity actually declares. A constrained field the entity lacks
// pins the query to no rows, mirroring CanAccess.
func Scoped(db *gorm.DB, scope UserScope, entityFields ...string) *gorm.DB {
	for field, want := range FiltersFor(scope) {
		declared := false
		for _, f := range entityFields {
			if f == field {
				declared = true
				break
			}
		}
		if declared {
			db = db.Where(field+" = ?", want)
		} else {
			db = db.Where("1 = 0")
		}
	}
	return db
}

// CheckExplicitFilter validates a caller-supplied filter value against the
// scope. Explicit parameters may narrow within scope but never escape it:
// when the scope pins the field, any other value is a scope violation. Fields
// the scope does not pin pass through untouched.
func CheckExplicitFilter(scope UserScope, field string, value uint) error {
	want, constrained := FiltersFor(scope)[field]
	if constrained && value != want {
		return ErrScopeViolation
	}
	return nil
}
