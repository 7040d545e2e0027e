package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmehdipour/outline-admin/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHAuditRepository reads and writes the audit history kept in ClickHouse.
type CHAuditRepository interface {
	AuditReader
	InsertBatch(ctx context.Context, rows []model.AuditEnvelope) error
}

type chAuditRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHAuditRepository(ch *sqlx.DB) CHAuditRepository {
	return &chAuditRepository{ch: ch}
}

// List reads from the deduplicated view; the sink is at-least-once.
func (r *chAuditRepository) List(ctx context.Context, f AuditFilter) ([]model.AuditLog, error) {
	q, args := auditListQuery("audit_events_latest", f)

	// meta is a String column; the driver will not scan it into json.RawMessage.
	var raw []struct {
		ID         int64     `db:"id"`
		Action     string    `db:"action"`
		CustomerID string    `db:"customer_id"`
		Meta       string    `db:"meta"`
		CreatedAt  time.Time `db:"created_at"`
	}
	if err := r.ch.SelectContext(ctx, &raw, q, args...); err != nil {
		return nil, err
	}

	rows := make([]model.AuditLog, 0, len(raw))
	for _, rw := range raw {
		rows = append(rows, model.AuditLog{
			ID:         rw.ID,
			Action:     model.AuditAction(rw.Action),
			CustomerID: rw.CustomerID,
			Meta:       json.RawMessage(rw.Meta),
			CreatedAt:  rw.CreatedAt,
		})
	}
	return rows, nil
}

func (r *chAuditRepository) InsertBatch(ctx context.Context, rows []model.AuditEnvelope) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO audit_events (id, action, customer_id, meta, created_at)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, rw := range rows {
		if _, err := stmt.ExecContext(ctx, rw.ID, rw.Action.String(), rw.CustomerID, string(rw.Meta), rw.CreatedAt); err != nil {
			return fmt.Errorf("append audit %d: %w", rw.ID, err)
		}
	}

	return tx.Commit()
}
