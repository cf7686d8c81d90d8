package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront/internal/postgres"
)

const (
	ActionOrderCreated   = "Order Created"
	ActionOrderPaid      = "Order Paid"
	ActionOrderCancelled = "Order Cancelled"
	ActionStatusUpdated  = "Order Status Updated"
	ActionTrackingAdded  = "Tracking Info Added"
)

// Entry is one append-only audit record tied to an order.
type Entry struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actorId"`
	Action    string         `json:"action"`
	OrderID   string         `json:"orderId"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Insert appends e using q, so callers can write the entry inside their own
// transaction.
func Insert(ctx context.Context, q postgres.Querier, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("audit details: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO audit_logs(id, actor_id, action, order_id, details)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ActorID, e.Action, e.OrderID, details,
	)
	return err
}

type Repo struct{ DB postgres.Querier }

// ListByOrder returns the trail of an order, oldest first.
func (r *Repo) ListByOrder(ctx context.Context, orderID string) ([]Entry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, actor_id, action, order_id, details, created_at
		FROM audit_logs WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.OrderID, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
