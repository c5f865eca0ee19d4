package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/clinrota/rotation-api/internal/models"
)

// ServiceRepository reads clinical services and their schedule permission
// overrides.
type ServiceRepository struct {
	db *sqlx.DB
}

// NewServiceRepository constructs the repository.
func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// FindByID loads one service. Returns sql.ErrNoRows when absent.
func (r *ServiceRepository) FindByID(ctx context.Context, id string) (*models.ClinicalService, error) {
	const query = `SELECT id, name, schedule_edit_permission, created_at FROM services WHERE id = $1`
	var svc models.ClinicalService
	if err := r.db.GetContext(ctx, &svc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find service: %w", err)
	}
	return &svc, nil
}

// List returns every clinical service.
func (r *ServiceRepository) List(ctx context.Context) ([]models.ClinicalService, error) {
	const query = `SELECT id, name, schedule_edit_permission, created_at FROM services ORDER BY name ASC`
	var services []models.ClinicalService
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}
