package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live_chat_service/internal/chat/domain"
)

// StaffRepository definition get staff account info
type StaffRepository interface {
	CreateStaff(ctx context.Context, staff *domain.Staff) error
	FindByStaff(ctx context.Context, staffQuery *domain.StaffQuery) (*domain.Staff, error)
	// 其他 CRUD ...
}

type staffRepository struct {
	db *pgxpool.Pool
}

// NewStaffRepository create a StaffRepository
func NewStaffRepository(db *pgxpool.Pool) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) CreateStaff(ctx context.Context, staff *domain.Staff) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO staff(staff_id, shop_id, email, password, role) VALUES ($1, $2, $3, $4, $5)",
		staff.StaffID, staff.ShopID, staff.Email, staff.Password, staff.Role)
	return err
}

func (r *staffRepository) FindByStaff(ctx context.Context, staffQuery *domain.StaffQuery) (*domain.Staff, error) {
	queryStr := "SELECT id, staff_id, shop_id, email, password, role FROM staff WHERE 1=1"
	params := []interface{}{}
	paramCount := 1

	if staffQuery.Email != nil {
		queryStr += fmt.Sprintf(" AND email = $%d", paramCount)
		params = append(params, *staffQuery.Email)
		paramCount++
	}
	if staffQuery.StaffID != nil {
		queryStr += fmt.Sprintf(" AND staff_id = $%d", paramCount)
		params = append(params, *staffQuery.StaffID)
		paramCount++
	}
	if staffQuery.ShopID != nil {
		queryStr += fmt.Sprintf(" AND shop_id = $%d", paramCount)
		params = append(params, *staffQuery.ShopID)
		paramCount++
	}
	if staffQuery.ID != nil {
		queryStr += fmt.Sprintf(" AND id = $%d", paramCount)
		params = append(params, *staffQuery.ID)
		paramCount++
	}

	row := r.db.QueryRow(ctx, queryStr, params...)
	var staff domain.Staff
	err := row.Scan(&staff.ID, &staff.StaffID, &staff.ShopID, &staff.Email, &staff.Password, &staff.Role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New("no staff found with given criteria")
		}
		return nil, err
	}

	return &staff, nil
}
