package contract

import "context"

// Repository defines read-only access to contracts. The alert core never
// mutates contract state.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Contract, error)
}
