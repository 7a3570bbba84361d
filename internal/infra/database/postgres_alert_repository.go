// internal/infra/database/postgres_alert_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/alert"

	"github.com/lib/pq" // For pq.Array and driver registration
)

// Custom errors specific to the alert repository
var ErrAlertNotFound = fmt.Errorf("alert not found")
var ErrDuplicateDispatch = fmt.Errorf("dispatch log row already exists for (alert, channel, date, threshold)")

const pqUniqueViolation = "23505"

type PostgresAlertRepository struct {
	db *sql.DB
}

func NewPostgresAlertRepository(db *sql.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{db: db}
}

func (r *PostgresAlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for alert create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	query := `INSERT INTO alerts (alert_type, title, body, due_date, period_index, status, contract_id)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id, created_at, updated_at`
	err = txn.QueryRowContext(ctx, query,
		a.Type, a.Title, a.Body, a.DueDate, a.PeriodIndex, a.Status, a.ContractID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating alert: %w", err)
	}

	for _, groupID := range a.GroupIDs {
		if _, err := txn.ExecContext(ctx,
			`INSERT INTO alert_target_groups (alert_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			a.ID, groupID); err != nil {
			return fmt.Errorf("error attaching group %d to alert %d: %w", groupID, a.ID, err)
		}
	}
	for _, userID := range a.UserIDs {
		if _, err := txn.ExecContext(ctx,
			`INSERT INTO alert_target_users (alert_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			a.ID, userID); err != nil {
			return fmt.Errorf("error attaching user %d to alert %d: %w", userID, a.ID, err)
		}
	}

	return txn.Commit()
}

func (r *PostgresAlertRepository) GetByID(ctx context.Context, id int64) (*alert.Alert, error) {
	query := `SELECT id, alert_type, title, body, due_date, period_index, status, contract_id, created_at, updated_at
               FROM alerts WHERE id = $1`
	a := alert.Alert{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Type, &a.Title, &a.Body, &a.DueDate, &a.PeriodIndex,
		&a.Status, &a.ContractID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("error getting alert by ID: %w", err)
	}
	if err := r.loadTargets(ctx, []*alert.Alert{&a}); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAlertRepository) ListPending(ctx context.Context) ([]*alert.Alert, error) {
	query := `SELECT id, alert_type, title, body, due_date, period_index, status, contract_id, created_at, updated_at
               FROM alerts
               WHERE status = $1 ORDER BY due_date, id`
	rows, err := r.db.QueryContext(ctx, query, alert.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("error querying pending alerts: %w", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadTargets(ctx, alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *PostgresAlertRepository) ListByUser(ctx context.Context, userID int64) ([]*alert.Alert, error) {
	query := `SELECT DISTINCT a.id, a.alert_type, a.title, a.body, a.due_date, a.period_index, a.status, a.contract_id, a.created_at, a.updated_at
               FROM alerts a
               LEFT JOIN alert_target_users atu ON atu.alert_id = a.id
               LEFT JOIN alert_target_groups atg ON atg.alert_id = a.id
               LEFT JOIN group_members gm ON gm.group_id = atg.group_id
               WHERE atu.user_id = $1 OR gm.user_id = $1
               ORDER BY a.due_date DESC, a.id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying alerts for user %d: %w", userID, err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadTargets(ctx, alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *PostgresAlertRepository) UpdateStatus(ctx context.Context, id int64, status alert.Status) error {
	query := `UPDATE alerts SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at`
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, status, id).Scan(&updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrAlertNotFound
		}
		return fmt.Errorf("error updating alert status: %w", err)
	}
	return nil
}

func (r *PostgresAlertRepository) ExistsForContractPeriod(ctx context.Context, contractID int64, alertType alert.Type, periodIndex int) (bool, error) {
	query := `SELECT COUNT(*) FROM alerts
               WHERE contract_id = $1 AND alert_type = $2 AND ($3 = 0 OR period_index = $3)`
	var count int
	if err := r.db.QueryRowContext(ctx, query, contractID, alertType, periodIndex).Scan(&count); err != nil {
		return false, fmt.Errorf("error checking existing alert for contract %d: %w", contractID, err)
	}
	return count > 0, nil
}

// --- Dispatch log methods ---

func (r *PostgresAlertRepository) DispatchExists(ctx context.Context, alertID int64, ch alert.Channel, date time.Time, th alert.Threshold) (bool, error) {
	periodIndex, daysBefore := thresholdColumns(th)
	query := `SELECT COUNT(*) FROM alert_dispatch_logs
               WHERE alert_id = $1 AND channel = $2 AND dispatch_date = $3
                 AND period_index IS NOT DISTINCT FROM $4
                 AND days_before IS NOT DISTINCT FROM $5`
	var count int
	err := r.db.QueryRowContext(ctx, query, alertID, ch, dateOnly(date), periodIndex, daysBefore).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking dispatch log existence: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresAlertRepository) CreateDispatchLog(ctx context.Context, l *alert.DispatchLog) error {
	periodIndex, daysBefore := thresholdColumns(l.Threshold)
	query := `INSERT INTO alert_dispatch_logs (alert_id, channel, dispatch_date, period_index, days_before, sent_count)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		l.AlertID, l.Channel, dateOnly(l.DispatchDate), periodIndex, daysBefore, l.SentCount,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateDispatch
		}
		return fmt.Errorf("error creating dispatch log: %w", err)
	}
	return nil
}

// --- Read marker methods ---

func (r *PostgresAlertRepository) MarkRead(ctx context.Context, alertID, userID int64) error {
	query := `INSERT INTO alert_reads (alert_id, user_id)
               VALUES ($1, $2)
               ON CONFLICT (alert_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, alertID, userID); err != nil {
		return fmt.Errorf("error marking alert %d read by user %d: %w", alertID, userID, err)
	}
	return nil
}

func (r *PostgresAlertRepository) ListReadAlertIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	query := `SELECT alert_id FROM alert_reads WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying read markers for user %d: %w", userID, err)
	}
	defer rows.Close()

	read := make(map[int64]bool)
	for rows.Next() {
		var alertID int64
		if err := rows.Scan(&alertID); err != nil {
			return nil, fmt.Errorf("error scanning read marker row: %w", err)
		}
		read[alertID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating read marker rows: %w", err)
	}
	return read, nil
}

// --- helpers ---

func scanAlerts(rows *sql.Rows) ([]*alert.Alert, error) {
	alerts := make([]*alert.Alert, 0)
	for rows.Next() {
		a := alert.Alert{}
		if err := rows.Scan(
			&a.ID, &a.Type, &a.Title, &a.Body, &a.DueDate, &a.PeriodIndex,
			&a.Status, &a.ContractID, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning alert row: %w", err)
		}
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}
	return alerts, nil
}

// loadTargets populates GroupIDs and UserIDs for the given alerts in two
// batched queries.
func (r *PostgresAlertRepository) loadTargets(ctx context.Context, alerts []*alert.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	byID := make(map[int64]*alert.Alert, len(alerts))
	ids := make([]int64, 0, len(alerts))
	for _, a := range alerts {
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT alert_id, group_id FROM alert_target_groups WHERE alert_id = ANY($1::bigint[])`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error querying alert target groups: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var alertID, groupID int64
		if err := rows.Scan(&alertID, &groupID); err != nil {
			return fmt.Errorf("error scanning alert target group row: %w", err)
		}
		if a, ok := byID[alertID]; ok {
			a.GroupIDs = append(a.GroupIDs, groupID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating alert target group rows: %w", err)
	}

	userRows, err := r.db.QueryContext(ctx,
		`SELECT alert_id, user_id FROM alert_target_users WHERE alert_id = ANY($1::bigint[])`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error querying alert target users: %w", err)
	}
	defer userRows.Close()
	for userRows.Next() {
		var alertID, userID int64
		if err := userRows.Scan(&alertID, &userID); err != nil {
			return fmt.Errorf("error scanning alert target user row: %w", err)
		}
		if a, ok := byID[alertID]; ok {
			a.UserIDs = append(a.UserIDs, userID)
		}
	}
	if err := userRows.Err(); err != nil {
		return fmt.Errorf("error iterating alert target user rows: %w", err)
	}
	return nil
}

// thresholdColumns maps the threshold union onto the two nullable columns of
// the dispatch log table. Exactly one of the results is valid.
func thresholdColumns(th alert.Threshold) (periodIndex, daysBefore sql.NullInt32) {
	switch th.Kind {
	case alert.ThresholdInstallment:
		periodIndex = sql.NullInt32{Int32: int32(th.Value), Valid: true}
	case alert.ThresholdDaysBefore:
		daysBefore = sql.NullInt32{Int32: int32(th.Value), Valid: true}
	}
	return periodIndex, daysBefore
}

// dateOnly anchors the dispatch date at midnight UTC, matching how the driver
// scans DATE columns back out.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
