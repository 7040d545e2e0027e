package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmehdipour/outline-admin/internal/model"
	"github.com/jmoiron/sqlx"
)

type AuditFilter struct {
	CustomerID string
	Action     model.AuditAction
	Limit      int
	Offset     int
}

// AuditWriter appends audit entries.
type AuditWriter interface {
	Append(ctx context.Context, action model.AuditAction, customerID string, meta any) error
}

// AuditReader lists audit entries newest first.
type AuditReader interface {
	List(ctx context.Context, f AuditFilter) ([]model.AuditLog, error)
}

// AuditRepositoryImpl stores audit_logs in MySQL and mirrors each row into the
// outbox within the same transaction.
type AuditRepositoryImpl struct {
	db     *sqlx.DB
	outbox OutboxRepository
	now    func() time.Time
}

func NewAuditRepository(db *sqlx.DB, outbox OutboxRepository) *AuditRepositoryImpl {
	return &AuditRepositoryImpl{db: db, outbox: outbox, now: time.Now}
}

var (
	_ AuditWriter = (*AuditRepositoryImpl)(nil)
	_ AuditReader = (*AuditRepositoryImpl)(nil)
)

func (r *AuditRepositoryImpl) Append(ctx context.Context, action model.AuditAction, customerID string, meta any) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal audit meta: %w", err)
	}
	createdAt := r.now().UTC()

	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO audit_logs (action, customer_id, meta, created_at)
			VALUES (?, ?, ?, ?)
		`, action.String(), customerID, metaJSON, createdAt)
		if err != nil {
			return fmt.Errorf("insert audit log: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		payload, err := json.Marshal(model.AuditEnvelope{
			ID:         id,
			Action:     action,
			CustomerID: customerID,
			Meta:       metaJSON,
			CreatedAt:  createdAt,
		})
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}

		if r.outbox == nil {
			return nil
		}
		return r.outbox.Insert(ctx, tx, model.OutboxEvent{
			Aggregate:   "customer",
			AggregateID: customerID,
			Topic:       AuditTopic,
			Payload:     payload,
		})
	})
}

func (r *AuditRepositoryImpl) List(ctx context.Context, f AuditFilter) ([]model.AuditLog, error) {
	q, args := auditListQuery("audit_logs", f)

	rows := []model.AuditLog{}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func auditListQuery(table string, f AuditFilter) (string, []any) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `SELECT id, action, customer_id, meta, created_at FROM ` + table + ` WHERE 1 = 1`
	args := []any{}

	if f.CustomerID != "" {
		q += " AND customer_id = ?"
		args = append(args, f.CustomerID)
	}
	if f.Action != "" {
		q += " AND action = ?"
		args = append(args, f.Action.String())
	}

	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	return q, args
}
