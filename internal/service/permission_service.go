package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clinrota/rotation-api/internal/models"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
)

type rotationReader interface {
	FindByID(ctx context.Context, id string) (*models.Rotation, error)
}

type clinicalServiceReader interface {
	FindByID(ctx context.Context, id string) (*models.ClinicalService, error)
	List(ctx context.Context) ([]models.ClinicalService, error)
}

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.InstructorAssignment, error)
}

type permissionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const permissionMapCacheKey = "permissions:service-map"

// PermissionService resolves whether a principal may edit schedules of a
// service or rotation. Principals holding Admin, Manage, or
// EditAllSchedules may edit everything; otherwise the service's effective
// permission decides (its override when set, Manage by default). Unknown
// rotations and services resolve to "no" rather than an error.
type PermissionService struct {
	rotations   rotationReader
	services    clinicalServiceReader
	assignments assignmentReader
	cache       permissionCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewPermissionService constructs the service. cache may be nil to disable
// permission-map caching.
func NewPermissionService(rotations rotationReader, services clinicalServiceReader, assignments assignmentReader, cache permissionCache, cacheTTL time.Duration, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{
		rotations:   rotations,
		services:    services,
		assignments: assignments,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// CanEditService reports whether the principal may edit the service's
// schedules. Unknown service ids fail closed.
func (s *PermissionService) CanEditService(ctx context.Context, principal models.Principal, serviceID string) (bool, error) {
	if principal.HasFullScheduleAccess() {
		return true, nil
	}

	svc, err := s.services.FindByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service")
	}

	return principal.Permissions.Has(svc.EffectiveEditPermission()), nil
}

// CanEditRotation resolves the rotation's owning service and delegates to
// CanEditService. Unknown rotation ids fail closed.
func (s *PermissionService) CanEditRotation(ctx context.Context, principal models.Principal, rotationID string) (bool, error) {
	rotation, err := s.rotations.FindByID(ctx, rotationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotation")
	}

	return s.CanEditService(ctx, principal, rotation.ServiceID)
}

// EditableServices returns the services whose schedules the principal may
// edit. Full-access principals get every service.
func (s *PermissionService) EditableServices(ctx context.Context, principal models.Principal) ([]models.ClinicalService, error) {
	services, err := s.services.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list services")
	}

	if principal.HasFullScheduleAccess() {
		return services, nil
	}

	editable := make([]models.ClinicalService, 0, len(services))
	for _, svc := range services {
		if principal.Permissions.Has(svc.EffectiveEditPermission()) {
			editable = append(editable, svc)
		}
	}
	return editable, nil
}

// ServicePermissionMap returns each service's effective edit permission in
// external string form, read through the cache when one is configured.
func (s *PermissionService) ServicePermissionMap(ctx context.Context) (map[string]string, error) {
	if s.cache != nil {
		cached := make(map[string]string)
		if err := s.cache.Get(ctx, permissionMapCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("permission map cache read failed", zap.Error(err))
		}
	}

	services, err := s.services.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list services")
	}

	permMap := make(map[string]string, len(services))
	for _, svc := range services {
		permMap[svc.ID] = svc.EffectiveEditPermission().String()
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, permissionMapCacheKey, permMap, s.cacheTTL); err != nil {
			s.logger.Warn("permission map cache write failed", zap.Error(err))
		}
	}

	return permMap, nil
}

// RequiredPermissionFor returns the effective permission required to edit
// one service's schedules.
func (s *PermissionService) RequiredPermissionFor(ctx context.Context, serviceID string) (models.Permission, error) {
	svc, err := s.services.FindByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PermissionUnknown, appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return models.PermissionUnknown, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service")
	}
	return svc.EffectiveEditPermission(), nil
}

// CanEditOwnSlot reports whether the principal may edit the assignment
// under the self-schedule exception: the EditOwnSchedule permission plus
// ownership of the row. Unknown assignment ids fail closed.
func (s *PermissionService) CanEditOwnSlot(ctx context.Context, principal models.Principal, assignmentID string) (bool, error) {
	if !principal.Permissions.Has(models.PermissionEditOwnSchedule) {
		return false, nil
	}

	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	return assignment.InstructorID == principal.InstructorID, nil
}
