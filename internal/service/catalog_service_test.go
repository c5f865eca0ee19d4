package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrota/rotation-api/internal/models"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
)

type stubRotationLister struct {
	details   []models.RotationDetail
	byService map[string][]models.Rotation
}

func (m *stubRotationLister) List(ctx context.Context) ([]models.RotationDetail, error) {
	return m.details, nil
}

func (m *stubRotationLister) ListByService(ctx context.Context, serviceID string) ([]models.Rotation, error) {
	return m.byService[serviceID], nil
}

type stubInstructorReader struct {
	items map[string]*models.Instructor
}

func (m *stubInstructorReader) FindByID(ctx context.Context, id string) (*models.Instructor, error) {
	if i, ok := m.items[id]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubInstructorReader) List(ctx context.Context, activeOnly bool) ([]models.Instructor, error) {
	var out []models.Instructor
	for _, i := range m.items {
		if activeOnly && !i.Active {
			continue
		}
		out = append(out, *i)
	}
	return out, nil
}

type stubWeekLister struct {
	weeks []models.Week
}

func (m *stubWeekLister) List(ctx context.Context) ([]models.Week, error) {
	return m.weeks, nil
}

func TestCatalogServiceListServiceRotations(t *testing.T) {
	_, services := permissionFixtures()
	rotations := &stubRotationLister{byService: map[string][]models.Rotation{
		"cardio": {{ID: "rot-cardio", ServiceID: "cardio", Name: "CCU"}},
	}}
	svc := NewCatalogService(services, rotations, &stubInstructorReader{}, &stubWeekLister{})

	out, err := svc.ListServiceRotations(context.Background(), "cardio")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "CCU", out[0].Name)

	_, err = svc.ListServiceRotations(context.Background(), "missing")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCatalogServiceListInstructors(t *testing.T) {
	_, services := permissionFixtures()
	instructors := &stubInstructorReader{items: map[string]*models.Instructor{
		"i1": {ID: "i1", FullName: "Dr. One", Active: true},
		"i2": {ID: "i2", FullName: "Dr. Two", Active: false},
	}}
	svc := NewCatalogService(services, &stubRotationLister{}, instructors, &stubWeekLister{})

	all, err := svc.ListInstructors(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.ListInstructors(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "i1", active[0].ID)

	_, err = svc.GetInstructor(context.Background(), "missing")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
