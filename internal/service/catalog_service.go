package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/clinrota/rotation-api/internal/models"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
)

type rotationLister interface {
	List(ctx context.Context) ([]models.RotationDetail, error)
	ListByService(ctx context.Context, serviceID string) ([]models.Rotation, error)
}

type instructorReader interface {
	FindByID(ctx context.Context, id string) (*models.Instructor, error)
	List(ctx context.Context, activeOnly bool) ([]models.Instructor, error)
}

type weekLister interface {
	List(ctx context.Context) ([]models.Week, error)
}

// CatalogService exposes read-only reference data: services, rotations,
// instructors, and schedule weeks.
type CatalogService struct {
	services    clinicalServiceReader
	rotations   rotationLister
	instructors instructorReader
	weeks       weekLister
}

// NewCatalogService constructs the service.
func NewCatalogService(services clinicalServiceReader, rotations rotationLister, instructors instructorReader, weeks weekLister) *CatalogService {
	return &CatalogService{
		services:    services,
		rotations:   rotations,
		instructors: instructors,
		weeks:       weeks,
	}
}

// ListServices returns every clinical service.
func (s *CatalogService) ListServices(ctx context.Context) ([]models.ClinicalService, error) {
	services, err := s.services.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list services")
	}
	return services, nil
}

// ListRotations returns every rotation with its owning service name.
func (s *CatalogService) ListRotations(ctx context.Context) ([]models.RotationDetail, error) {
	rotations, err := s.rotations.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rotations")
	}
	return rotations, nil
}

// ListServiceRotations returns one service's rotations.
func (s *CatalogService) ListServiceRotations(ctx context.Context, serviceID string) ([]models.Rotation, error) {
	if _, err := s.services.FindByID(ctx, serviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service")
	}
	rotations, err := s.rotations.ListByService(ctx, serviceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list service rotations")
	}
	return rotations, nil
}

// ListInstructors returns instructors, optionally active ones only.
func (s *CatalogService) ListInstructors(ctx context.Context, activeOnly bool) ([]models.Instructor, error) {
	instructors, err := s.instructors.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	return instructors, nil
}

// GetInstructor loads one instructor.
func (s *CatalogService) GetInstructor(ctx context.Context, id string) (*models.Instructor, error) {
	instructor, err := s.instructors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// ListWeeks returns the schedule weeks in calendar order.
func (s *CatalogService) ListWeeks(ctx context.Context) ([]models.Week, error) {
	weeks, err := s.weeks.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weeks")
	}
	return weeks, nil
}
