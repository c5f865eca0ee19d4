package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/clinrota/rotation-api/internal/models"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
)

// AccessService is the authorization gate controllers call before schedule
// mutations. It honors the self-schedule exception: a principal holding
// EditOwnSchedule may act when the targeted rows are their own, even
// without the rotation's service permission. Note that the lower-level
// ScheduleService operations enforce only the rotation permission and do
// not re-apply this exception when invoked directly.
type AccessService struct {
	permissions rotationPermissionChecker
	logger      *zap.Logger
}

// NewAccessService constructs the gate.
func NewAccessService(permissions rotationPermissionChecker, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{permissions: permissions, logger: logger}
}

// ValidateAndResolvePrincipal returns the acting principal when it may edit
// the rotation's schedule, or when the self-schedule exception applies to
// targetInstructorID. Fails closed otherwise.
func (s *AccessService) ValidateAndResolvePrincipal(ctx context.Context, principal models.Principal, rotationID, targetInstructorID string) (*models.Principal, error) {
	allowed, err := s.permissions.CanEditRotation(ctx, principal, rotationID)
	if err != nil {
		return nil, err
	}
	if allowed {
		return &principal, nil
	}

	if principal.Permissions.Has(models.PermissionEditOwnSchedule) && targetInstructorID != "" && targetInstructorID == principal.InstructorID {
		return &principal, nil
	}

	s.logger.Info("rejected schedule access",
		zap.String("acting_instructor_id", principal.InstructorID),
		zap.String("rotation_id", rotationID),
		zap.String("target_instructor_id", targetInstructorID))
	return nil, appErrors.Clone(appErrors.ErrForbidden, "not permitted to edit this schedule")
}
