package repository

import (
	"context"
	"database/sql"

	"github.com/moldtrack/mold-asset-tracker/internal/model"
)

// NotificationRepo provides access to the notifications table.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts one notification row for a recipient.  Callers in the
// fan-out path treat a failure here as best-effort: it is logged and never
// rolls back the alert that triggered it.
func (r *NotificationRepo) Create(ctx context.Context, userID, alertID uint64, title, body string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, alert_id, title, body, is_read) VALUES (?,?,?,?,0)`,
		userID, alertID, title, body)
	return err
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID uint64, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, alert_id, title, body, is_read, created_at
		 FROM notifications WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.AlertID, &n.Title, &n.Body, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// MarkRead flags a notification as read.  Only the owning user's rows are
// touched so one user cannot mark another's notifications.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	return err
}
