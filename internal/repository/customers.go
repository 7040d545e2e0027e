package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmehdipour/outline-admin/internal/errs"
	"github.com/jmehdipour/outline-admin/internal/model"
	"github.com/jmoiron/sqlx"
)

type CustomerFilter struct {
	Status model.CustomerStatus // empty = any
	Search string               // matches name or phone prefix
	Limit  int
	Offset int
}

type CustomersRepository interface {
	Create(ctx context.Context, c model.Customer) error
	GetByID(ctx context.Context, id string) (*model.Customer, error)
	List(ctx context.Context, f CustomerFilter) ([]model.Customer, error)
	Update(ctx context.Context, c model.Customer) error
	Delete(ctx context.Context, id string) error

	// ListOverdue returns ACTIVE customers whose expires_at <= now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Customer, error)
	// BatchExpire flips the given ids to EXPIRED in one statement. Rows that were
	// renewed or changed status in the meantime are left alone.
	BatchExpire(ctx context.Context, ids []string, now time.Time) (int64, error)
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

const customerColumns = `id, name, phone, plan_days, status, outline_key_id, outline_access_url, expires_at, created_at, updated_at`

func (r *CustomersRepositoryImpl) Create(ctx context.Context, c model.Customer) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO customers
		    (id, name, phone, plan_days, status, outline_key_id, outline_access_url, expires_at, created_at, updated_at)
		VALUES
		    (:id, :name, :phone, :plan_days, :status, :outline_key_id, :outline_access_url, :expires_at, :created_at, :updated_at)
	`, c)
	return err
}

func (r *CustomersRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomersRepositoryImpl) List(ctx context.Context, f CustomerFilter) ([]model.Customer, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `SELECT ` + customerColumns + ` FROM customers WHERE 1 = 1`
	args := []any{}

	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status.String())
	}
	if f.Search != "" {
		q += " AND (name LIKE ? OR phone LIKE ?)"
		like := "%" + f.Search + "%"
		args = append(args, like, f.Search+"%")
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows := []model.Customer{}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// Update writes every mutable column. MySQL reports 0 affected rows for an
// unchanged row, so a missing id is not detected here.
func (r *CustomersRepositoryImpl) Update(ctx context.Context, c model.Customer) error {
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE customers
		   SET name = :name,
		       phone = :phone,
		       plan_days = :plan_days,
		       status = :status,
		       outline_key_id = :outline_key_id,
		       outline_access_url = :outline_access_url,
		       expires_at = :expires_at,
		       updated_at = :updated_at
		 WHERE id = :id
	`, c)
	return err
}

func (r *CustomersRepositoryImpl) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *CustomersRepositoryImpl) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Customer, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows := []model.Customer{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+customerColumns+`
		  FROM customers
		 WHERE status = ? AND expires_at <= ?
		 ORDER BY expires_at ASC
		 LIMIT ?
	`, model.StatusActive.String(), now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CustomersRepositoryImpl) BatchExpire(ctx context.Context, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const base = `UPDATE customers SET status = ?, updated_at = ? WHERE id IN (?) AND status = ? AND expires_at <= ?`
	query, args, err := sqlx.In(base, model.StatusExpired.String(), now.UTC(), ids, model.StatusActive.String(), now.UTC())
	if err != nil {
		return 0, err
	}
	query = r.db.Rebind(query)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
