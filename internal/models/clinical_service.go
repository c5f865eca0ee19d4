package models

import "time"

// ClinicalService groups rotations under one department-like unit. When
// EditPermission is set it overrides the default permission ("Manage")
// required to edit schedules of the service's rotations.
type ClinicalService struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	EditPermission *string   `db:"schedule_edit_permission" json:"schedule_edit_permission,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// EffectiveEditPermission resolves the permission required to edit this
// service's schedules: the override when present and recognised, otherwise
// Manage. An override outside the vocabulary resolves to PermissionUnknown,
// which no principal can hold, so only full-access principals pass.
func (s ClinicalService) EffectiveEditPermission() Permission {
	if s.EditPermission == nil || *s.EditPermission == "" {
		return PermissionManage
	}
	p, ok := ParsePermission(*s.EditPermission)
	if !ok {
		return PermissionUnknown
	}
	return p
}
