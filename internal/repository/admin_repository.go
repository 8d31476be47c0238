package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
)

// AdminRepository handles admin account data access.
type AdminRepository struct {
	db Querier
}

// NewAdminRepository creates a new AdminRepository.
func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: pool}
}

// GetByEmail retrieves an admin by email.
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	a := &model.Admin{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, email, password_hash FROM admins WHERE email = $1`, email).
		Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts an admin account (cmd/create-admin).
func (r *AdminRepository) Create(ctx context.Context, a *model.Admin) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO admins (name, email, password_hash) VALUES ($1, $2, $3) RETURNING id`,
		a.Name, a.Email, a.PasswordHash).Scan(&a.ID)
}
