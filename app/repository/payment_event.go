package repository

import (
	"context"
	"database/sql"

	"github.com/orvion-sh/orvion-quick-start/app/entity"
)

type PaymentEventRepository struct {
	db DBTX
}

func NewPaymentEventRepository(db DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) Create(ctx context.Context, event *entity.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (
			route_key, charge_id, event_type, transaction_id, amount, currency, detail, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.RouteKey,
		event.ChargeID,
		event.EventType,
		nullableStringValue(event.TransactionID),
		event.Amount,
		event.Currency,
		nullableStringValue(event.Detail),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

// ListRecent returns the newest audit events, newest first.
func (r *PaymentEventRepository) ListRecent(ctx context.Context, limit int32) ([]*entity.PaymentEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, route_key, charge_id, event_type, transaction_id, amount, currency, detail, created_at
		FROM payment_events
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.PaymentEvent, 0)
	for rows.Next() {
		var item entity.PaymentEvent
		var transactionID, detail sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.RouteKey,
			&item.ChargeID,
			&item.EventType,
			&transactionID,
			&item.Amount,
			&item.Currency,
			&detail,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.TransactionID = stringPtrFromNull(transactionID)
		item.Detail = stringPtrFromNull(detail)
		items = append(items, &item)
	}
	return items, rows.Err()
}
