package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lentera-edu/lentera-backend/internal/model"
)

// BadgeHolding is a badge a student holds together with its quantity.
type BadgeHolding struct {
	model.Badge
	Quantity int `json:"quantity"`
}

// BadgeRepository handles badge catalog and holdings data access.
type BadgeRepository struct {
	db Querier
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(pool *pgxpool.Pool) *BadgeRepository {
	return &BadgeRepository{db: pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *BadgeRepository) WithTx(tx pgx.Tx) *BadgeRepository {
	return &BadgeRepository{db: tx}
}

// GetByID retrieves a badge from the catalog.
func (r *BadgeRepository) GetByID(ctx context.Context, id int) (*model.Badge, error) {
	b := &model.Badge{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, point_value FROM badges WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Description, &b.PointValue)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetByName retrieves a badge from the catalog by its unique name.
func (r *BadgeRepository) GetByName(ctx context.Context, name string) (*model.Badge, error) {
	b := &model.Badge{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, point_value FROM badges WHERE name = $1`, name).
		Scan(&b.ID, &b.Name, &b.Description, &b.PointValue)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Upsert inserts or refreshes a badge catalog row (cmd/seed-badges).
func (r *BadgeRepository) Upsert(ctx context.Context, b *model.Badge) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO badges (name, description, point_value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE
		 SET description = EXCLUDED.description, point_value = EXCLUDED.point_value
		 RETURNING id`,
		b.Name, b.Description, b.PointValue).Scan(&b.ID)
}

// IncrementHolding awards one more of a badge to a student. Repeat awards
// accumulate quantity instead of adding rows. Returns the new quantity.
func (r *BadgeRepository) IncrementHolding(ctx context.Context, studentID, badgeID int) (int, error) {
	var quantity int
	err := r.db.QueryRow(ctx,
		`INSERT INTO student_badges (student_id, badge_id, quantity)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (student_id, badge_id) DO UPDATE
		 SET quantity = student_badges.quantity + 1
		 RETURNING quantity`,
		studentID, badgeID).Scan(&quantity)
	return quantity, err
}

// ListByStudent retrieves all badges a student holds.
func (r *BadgeRepository) ListByStudent(ctx context.Context, studentID int) ([]BadgeHolding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT b.id, b.name, b.description, b.point_value, sb.quantity
		 FROM student_badges sb
		 JOIN badges b ON b.id = sb.badge_id
		 WHERE sb.student_id = $1
		 ORDER BY b.name`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []BadgeHolding
	for rows.Next() {
		var h BadgeHolding
		if err := rows.Scan(&h.ID, &h.Name, &h.Description, &h.PointValue, &h.Quantity); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// SumBadgePoints totals point_value × quantity over a student's holdings
// (the badge-point component of leveling).
func (r *BadgeRepository) SumBadgePoints(ctx context.Context, studentID int) (float64, error) {
	var sum float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(b.point_value * sb.quantity), 0)
		 FROM student_badges sb
		 JOIN badges b ON b.id = sb.badge_id
		 WHERE sb.student_id = $1`, studentID).Scan(&sum)
	return sum, err
}

// DeleteHolding removes a student's holding of one badge entirely.
// This is the only path that revokes badges; attempt deletion never does.
func (r *BadgeRepository) DeleteHolding(ctx context.Context, studentID, badgeID int) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM student_badges WHERE student_id = $1 AND badge_id = $2`, studentID, badgeID)
	return err
}
