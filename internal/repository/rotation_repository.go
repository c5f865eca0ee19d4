package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/clinrota/rotation-api/internal/models"
)

// RotationRepository reads clinical rotations.
type RotationRepository struct {
	db *sqlx.DB
}

// NewRotationRepository constructs the repository.
func NewRotationRepository(db *sqlx.DB) *RotationRepository {
	return &RotationRepository{db: db}
}

// FindByID loads one rotation. Returns sql.ErrNoRows when absent.
func (r *RotationRepository) FindByID(ctx context.Context, id string) (*models.Rotation, error) {
	const query = `SELECT id, service_id, name, created_at FROM rotations WHERE id = $1`
	var rotation models.Rotation
	if err := r.db.GetContext(ctx, &rotation, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find rotation: %w", err)
	}
	return &rotation, nil
}

// List returns all rotations with their owning service name.
func (r *RotationRepository) List(ctx context.Context) ([]models.RotationDetail, error) {
	const query = `
SELECT r.id, r.service_id, r.name, r.created_at, s.name AS service_name
FROM rotations r
JOIN services s ON s.id = r.service_id
ORDER BY s.name ASC, r.name ASC`
	var rotations []models.RotationDetail
	if err := r.db.SelectContext(ctx, &rotations, query); err != nil {
		return nil, fmt.Errorf("list rotations: %w", err)
	}
	return rotations, nil
}

// ListByService returns the rotations owned by one service.
func (r *RotationRepository) ListByService(ctx context.Context, serviceID string) ([]models.Rotation, error) {
	const query = `SELECT id, service_id, name, created_at FROM rotations WHERE service_id = $1 ORDER BY name ASC`
	var rotations []models.Rotation
	if err := r.db.SelectContext(ctx, &rotations, query, serviceID); err != nil {
		return nil, fmt.Errorf("list service rotations: %w", err)
	}
	return rotations, nil
}
