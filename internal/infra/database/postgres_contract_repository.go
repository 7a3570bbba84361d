package database

import (
	"context"
	"database/sql"
	"fmt" // For error wrapping

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/contract"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrContractNotFound = fmt.Errorf("contract not found")

type PostgresContractRepository struct {
	db *sql.DB
}

func NewPostgresContractRepository(db *sql.DB) *PostgresContractRepository {
	return &PostgresContractRepository{db: db}
}

func (r *PostgresContractRepository) GetByID(ctx context.Context, id int64) (*contract.Contract, error) {
	query := `SELECT id, contract_type, start_date, end_date, monthly_due_day, term_months,
                      client_id, owner_id, agent_id, created_at, updated_at
               FROM contracts WHERE id = $1`
	c := &contract.Contract{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Type, &c.StartDate, &c.EndDate, &c.MonthlyDueDay, &c.TermMonths,
		&c.ClientID, &c.OwnerID, &c.AgentID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("error getting contract by ID: %w", err)
	}
	return c, nil
}
