package alert

import (
	"context"
	"time"
)

// Repository defines persistence operations for alerts, dispatch logs and
// read markers.
type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id int64) (*Alert, error)
	// ListPending returns every alert in PENDIENTE status with its target
	// group and user ID sets populated.
	ListPending(ctx context.Context) ([]*Alert, error)
	ListByUser(ctx context.Context, userID int64) ([]*Alert, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error

	// ExistsForContractPeriod reports whether an alert of the given type is
	// already registered for the contract (and installment, for rental
	// alerts). Used to keep alert generation idempotent.
	ExistsForContractPeriod(ctx context.Context, contractID int64, alertType Type, periodIndex int) (bool, error)

	// DispatchExists reports whether a dedup row already covers the given
	// (alert, channel, date, threshold) tuple.
	DispatchExists(ctx context.Context, alertID int64, ch Channel, date time.Time, th Threshold) (bool, error)
	// CreateDispatchLog inserts a dedup row. A concurrent duplicate insert
	// must surface ErrDuplicateDispatch rather than a fatal error: the insert
	// is advisory-idempotent.
	CreateDispatchLog(ctx context.Context, l *DispatchLog) error

	// MarkRead idempotently records that a user has viewed an alert.
	MarkRead(ctx context.Context, alertID, userID int64) error
	ListReadAlertIDs(ctx context.Context, userID int64) (map[int64]bool, error)
}
