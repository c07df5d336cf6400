package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

type CustomerRepository struct {
	db *DB
}

func NewCustomerRepository(db *DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	query := `SELECT customer_id, kyc_level, status, created_at FROM customers WHERE customer_id = $1`

	var m customerModel
	err := r.db.Pool.QueryRow(ctx, query, customerID).Scan(&m.CustomerID, &m.KycLevel, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}

	customer := toDomainCustomer(&m)
	return &customer, nil
}
