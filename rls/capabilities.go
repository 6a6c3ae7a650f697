package rls

// Entity names the scoped record kinds the API serves.
type Entity string

const (
	EntityStudent       Entity = "student"
	EntityGraduate      Entity = "graduate"
	EntityRegion        Entity = "region"
	EntityUniversity    Entity = "university"
	EntitySmallGroup    Entity = "small_group"
	EntityGraduateGroup Entity = "graduate_small_group"
	EntityProperty      Entity = "property"
	EntityGBUData       Entity = "gbu_data"
	EntityNotification  Entity = "notification"
)

type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// CanPerform evaluates capability gates. These run BEFORE any row filter and
// deny whole operations to whole scope levels, independent of row ownership,
// so the caller gets a 403 rather than an empty result set.
func CanPerform(scope UserScope, entity Entity, op Operation) error {
	switch entity {
	case EntityStudent:
		// The graduate track never touches student records.
		if scope.Level == LevelGraduateSmallGroup {
			return ErrCapabilityDenied
		}
	case EntityGraduate:
		if (scope.Level == LevelUniversity || scope.Level == LevelSmallGroup) &&
			(op == OpCreate || op == OpDelete) {
			return ErrCapabilityDenied
		}
	case EntityRegion:
		if op != OpRead && !scope.Unrestricted() {
			return ErrCapabilityDenied
		}
	case EntityUniversity, EntitySmallGroup, EntityGraduateGroup:
		if (op == OpCreate || op == OpDelete) && !scope.atLeastRegion() {
			return ErrCapabilityDenied
		}
	case EntityNotification:
		// Producing notifications by hand is a coordination task; leaf
		// scopes only receive them. The attendance-miss event endpoint has
		// its own gate in the controller.
		if op == OpCreate && !scope.atLeastRegion() {
			return ErrCapabilityDenied
		}
	}
	return nil
}
