package models

// Permission is one value of the closed scheduling permission vocabulary.
// Raw permission strings from the identity provider are converted to
// Permission values at the boundary and never compared as strings inside
// the core.
type Permission uint8

const (
	PermissionUnknown Permission = iota
	PermissionBase
	PermissionManage
	PermissionViewStudents
	PermissionViewClinicians
	PermissionViewOwn
	PermissionAdmin
	PermissionEditAllSchedules
	PermissionEditOwnSchedule
)

var permissionNames = map[Permission]string{
	PermissionBase:             "Base",
	PermissionManage:           "Manage",
	PermissionViewStudents:     "ViewStudents",
	PermissionViewClinicians:   "ViewClinicians",
	PermissionViewOwn:          "ViewOwn",
	PermissionAdmin:            "Admin",
	PermissionEditAllSchedules: "EditAllSchedules",
	PermissionEditOwnSchedule:  "EditOwnSchedule",
}

var permissionValues = func() map[string]Permission {
	m := make(map[string]Permission, len(permissionNames))
	for p, name := range permissionNames {
		m[name] = p
	}
	return m
}()

// String returns the external wire form of the permission.
func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "Unknown"
}

// ParsePermission converts an external permission string to its tagged
// value. The second result is false for strings outside the vocabulary.
func ParsePermission(raw string) (Permission, bool) {
	p, ok := permissionValues[raw]
	return p, ok
}

// PermissionSet is the set of permissions held by a principal.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from tagged values.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		if p != PermissionUnknown {
			set[p] = struct{}{}
		}
	}
	return set
}

// ParsePermissionSet converts raw permission strings into a set, dropping
// strings outside the vocabulary.
func ParsePermissionSet(raw []string) PermissionSet {
	set := make(PermissionSet, len(raw))
	for _, r := range raw {
		if p, ok := ParsePermission(r); ok {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAny reports whether the set contains at least one of the permissions.
func (s PermissionSet) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Strings returns the external wire form of every permission in the set.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p.String())
	}
	return out
}

// Principal identifies the acting user for an operation. The instructor id
// doubles as schedule-row owner and self-edit identity. Every service
// operation receives the principal explicitly; there is no ambient
// current-user accessor.
type Principal struct {
	InstructorID string        `json:"instructor_id"`
	Permissions  PermissionSet `json:"-"`
}

// HasFullScheduleAccess reports whether the principal may edit every
// service's schedules regardless of per-service overrides.
func (p Principal) HasFullScheduleAccess() bool {
	return p.Permissions.HasAny(PermissionAdmin, PermissionManage, PermissionEditAllSchedules)
}
