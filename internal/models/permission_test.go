package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePermission(t *testing.T) {
	p, ok := ParsePermission("EditAllSchedules")
	assert.True(t, ok)
	assert.Equal(t, PermissionEditAllSchedules, p)

	_, ok = ParsePermission("NotAPermission")
	assert.False(t, ok)

	_, ok = ParsePermission("")
	assert.False(t, ok)
}

func TestParsePermissionSetDropsUnknown(t *testing.T) {
	set := ParsePermissionSet([]string{"Base", "bogus", "Admin"})
	assert.True(t, set.Has(PermissionBase))
	assert.True(t, set.Has(PermissionAdmin))
	assert.Len(t, set, 2)
}

func TestPrincipalFullScheduleAccess(t *testing.T) {
	for _, p := range []Permission{PermissionAdmin, PermissionManage, PermissionEditAllSchedules} {
		principal := Principal{Permissions: NewPermissionSet(p)}
		assert.True(t, principal.HasFullScheduleAccess(), p.String())
	}

	limited := Principal{Permissions: NewPermissionSet(PermissionBase, PermissionEditOwnSchedule, PermissionViewOwn)}
	assert.False(t, limited.HasFullScheduleAccess())
}

func TestClinicalServiceEffectiveEditPermission(t *testing.T) {
	def := ClinicalService{}
	assert.Equal(t, PermissionManage, def.EffectiveEditPermission())

	override := "Base"
	svc := ClinicalService{EditPermission: &override}
	assert.Equal(t, PermissionBase, svc.EffectiveEditPermission())

	bogus := "NotAPermission"
	svc = ClinicalService{EditPermission: &bogus}
	assert.Equal(t, PermissionUnknown, svc.EffectiveEditPermission())

	empty := ""
	svc = ClinicalService{EditPermission: &empty}
	assert.Equal(t, PermissionManage, svc.EffectiveEditPermission())
}

func TestJWTClaimsPrincipal(t *testing.T) {
	claims := &JWTClaims{
		InstructorID: "inst-1",
		Permissions:  []string{"Base", "EditOwnSchedule", "bogus"},
	}
	principal := claims.Principal()
	assert.Equal(t, "inst-1", principal.InstructorID)
	assert.True(t, principal.Permissions.Has(PermissionEditOwnSchedule))
	assert.False(t, principal.Permissions.Has(PermissionAdmin))
	assert.Len(t, principal.Permissions, 2)
}
