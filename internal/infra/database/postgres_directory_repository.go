package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/directory"

	"github.com/lib/pq" // For pq.Array and driver registration
)

type PostgresDirectoryRepository struct {
	db *sql.DB
}

func NewPostgresDirectoryRepository(db *sql.DB) *PostgresDirectoryRepository {
	return &PostgresDirectoryRepository{db: db}
}

func (r *PostgresDirectoryRepository) ListActiveByIDs(ctx context.Context, ids []int64) ([]*directory.User, error) {
	if len(ids) == 0 {
		return []*directory.User{}, nil
	}
	query := `SELECT id, first_name, last_name, email, is_active, created_at, updated_at
               FROM users
               WHERE id = ANY($1::bigint[]) AND is_active = TRUE
               ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error listing active users by IDs: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *PostgresDirectoryRepository) ListActiveGroupMembers(ctx context.Context, groupIDs []int64) ([]*directory.User, error) {
	if len(groupIDs) == 0 {
		return []*directory.User{}, nil
	}
	query := `SELECT DISTINCT u.id, u.first_name, u.last_name, u.email, u.is_active, u.created_at, u.updated_at
               FROM users u
               JOIN group_members gm ON gm.user_id = u.id
               WHERE gm.group_id = ANY($1::bigint[]) AND u.is_active = TRUE
               ORDER BY u.id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(groupIDs))
	if err != nil {
		return nil, fmt.Errorf("error listing active group members: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *PostgresDirectoryRepository) ListDeviceTokens(ctx context.Context, userIDs []int64) ([]string, error) {
	if len(userIDs) == 0 {
		return []string{}, nil
	}
	query := `SELECT fcm_token FROM user_devices WHERE user_id = ANY($1::bigint[])`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("error listing device tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("error scanning device token row: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device token rows: %w", err)
	}
	return tokens, nil
}

func (r *PostgresDirectoryRepository) RemoveDeviceTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	query := `DELETE FROM user_devices WHERE fcm_token = ANY($1::varchar[])`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(tokens)); err != nil {
		return fmt.Errorf("error removing device tokens: %w", err)
	}
	return nil
}

func scanUsers(rows *sql.Rows) ([]*directory.User, error) {
	users := make([]*directory.User, 0)
	for rows.Next() {
		u := &directory.User{}
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}
