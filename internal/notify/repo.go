package notify

import (
	"context"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
)

type Store interface {
	Insert(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

var ErrNotificationNotFound = apperr.NotFound("", "notification not found")

type Repo struct{ DB postgres.Querier }

func (r *Repo) Insert(ctx context.Context, n Notification) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO notifications(id, user_id, type, message, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		n.ID, n.UserID, n.Type, n.Message, n.Read, n.CreatedAt)
	return err
}

func (r *Repo) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, type, message, read, created_at
		FROM notifications WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repo) MarkRead(ctx context.Context, userID, id string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
