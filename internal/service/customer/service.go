// Package customer implements the customer lifecycle: create, renew, revoke,
// expire, delete, lock, unlock and update, each paired with the matching
// Outline access key side effect and an audit entry.
package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmehdipour/outline-admin/internal/errs"
	"github.com/jmehdipour/outline-admin/internal/expiry"
	"github.com/jmehdipour/outline-admin/internal/lock"
	"github.com/jmehdipour/outline-admin/internal/metrics"
	"github.com/jmehdipour/outline-admin/internal/model"
	"github.com/jmehdipour/outline-admin/internal/outline"
	"github.com/jmehdipour/outline-admin/internal/repository"
	"github.com/jmehdipour/outline-admin/internal/util"
	"go.uber.org/zap"
)

// KeyManager is the part of the Outline management API the lifecycle needs.
type KeyManager interface {
	CreateKey(ctx context.Context) (outline.AccessKey, error)
	RenameKey(ctx context.Context, id, name string) error
	DeleteKey(ctx context.Context, id string) error
	SetDataLimit(ctx context.Context, id string, limitBytes int64) error
	RemoveDataLimit(ctx context.Context, id string) error
}

var _ KeyManager = (*outline.Client)(nil)

// Column widths of customers.name and customers.phone.
const (
	maxNameLen  = 255
	maxPhoneLen = 32
)

type Options struct {
	Logger           *zap.Logger
	Now              func() time.Time
	SweepConcurrency int // parallel key deletions per sweep
	SweepBatch       int // max candidates per sweep
}

type Service struct {
	customers repository.CustomersRepository
	audit     repository.AuditWriter
	keys      KeyManager
	locker    lock.Locker

	log              *zap.Logger
	now              func() time.Time
	sweepConcurrency int
	sweepBatch       int
}

func New(
	customers repository.CustomersRepository,
	audit repository.AuditWriter,
	keys KeyManager,
	locker lock.Locker,
	opts Options,
) *Service {
	s := &Service{
		customers:        customers,
		audit:            audit,
		keys:             keys,
		locker:           locker,
		log:              opts.Logger,
		now:              opts.Now,
		sweepConcurrency: opts.SweepConcurrency,
		sweepBatch:       opts.SweepBatch,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.locker == nil {
		s.locker = lock.NewMemory(0)
	}
	if s.sweepConcurrency <= 0 {
		s.sweepConcurrency = 8
	}
	if s.sweepBatch <= 0 {
		s.sweepBatch = 500
	}
	return s
}

type CreateInput struct {
	Name     string
	Phone    *string
	PlanDays int
}

// UpdateInput carries a partial update. Phone is applied only when SetPhone is
// true; a nil or blank Phone then clears it.
type UpdateInput struct {
	Name     *string
	Phone    *string
	SetPhone bool
}

func (s *Service) Get(ctx context.Context, id string) (*model.Customer, error) {
	return s.customers.GetByID(ctx, id)
}

// List reports stored status. Overdue customers are expired by the sweep only.
func (s *Service) List(ctx context.Context, f repository.CustomerFilter) ([]model.Customer, error) {
	return s.customers.List(ctx, f)
}

// Create provisions a named access key and stores an ACTIVE customer bound to it.
func (s *Service) Create(ctx context.Context, in CreateInput) (_ *model.Customer, err error) {
	defer observe("create", &err)

	name, err := validName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := validPlanDays(in.PlanDays); err != nil {
		return nil, err
	}
	phone, err := validPhone(in.Phone)
	if err != nil {
		return nil, err
	}

	key, err := s.keys.CreateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("create access key: %w", err)
	}
	if err := s.keys.RenameKey(ctx, key.ID, name); err != nil {
		s.discardKey(ctx, key.ID)
		return nil, fmt.Errorf("name access key %s: %w", key.ID, err)
	}

	now := s.now().UTC()
	c := model.Customer{
		ID:               util.NewIDAt(now),
		Name:             name,
		Phone:            phone,
		PlanDays:         in.PlanDays,
		Status:           model.StatusActive,
		OutlineKeyID:     key.ID,
		OutlineAccessURL: key.AccessURL,
		ExpiresAt:        expiry.From(now, in.PlanDays),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		s.discardKey(ctx, key.ID)
		return nil, fmt.Errorf("insert customer: %w", err)
	}

	s.record(ctx, model.ActionCreate, c.ID, map[string]any{
		"outlineKeyId": key.ID,
		"planDays":     in.PlanDays,
	})
	return &c, nil
}

// Update changes name and/or phone. The access key follows a name change while
// the customer is ACTIVE.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (_ *model.Customer, err error) {
	defer observe("update", &err)

	if in.Name == nil && !in.SetPhone {
		return nil, fmt.Errorf("%w: nothing to update", errs.ErrValidation)
	}
	var name string
	if in.Name != nil {
		if name, err = validName(*in.Name); err != nil {
			return nil, err
		}
	}
	var phone *string
	if in.SetPhone {
		if phone, err = validPhone(in.Phone); err != nil {
			return nil, err
		}
	}

	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	if in.Name != nil {
		if c.Status == model.StatusActive && name != c.Name {
			if err := s.keys.RenameKey(ctx, c.OutlineKeyID, name); err != nil {
				return nil, fmt.Errorf("rename access key %s: %w", c.OutlineKeyID, err)
			}
		}
		c.Name = name
		meta["name"] = name
	}
	if in.SetPhone {
		c.Phone = phone
		meta["phone"] = c.Phone
	}
	c.UpdatedAt = s.now().UTC()

	if err := s.customers.Update(ctx, *c); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}

	s.record(ctx, model.ActionUpdate, c.ID, meta)
	return c, nil
}

// Delete removes a customer that is no longer ACTIVE or whose plan has run
// out. The access key is deleted best effort; it may already be gone.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer observe("delete", &err)

	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !c.Deletable(s.now()) {
		return fmt.Errorf("%w: only expired plans can be deleted", errs.ErrConflict)
	}

	if err := s.keys.DeleteKey(ctx, c.OutlineKeyID); err != nil && !outline.IsNotFound(err) {
		s.log.Warn("delete access key failed, removing customer anyway",
			zap.String("customer_id", c.ID), zap.String("key_id", c.OutlineKeyID), zap.Error(err))
	}

	if err := s.customers.Delete(ctx, c.ID); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}

	s.record(ctx, model.ActionDelete, c.ID, map[string]any{
		"status":       c.Status,
		"outlineKeyId": c.OutlineKeyID,
	})
	return nil
}

// Renew swaps the customer onto a fresh access key and extends the plan from
// max(expiresAt, now). planDays <= 0 keeps the current plan length. When the
// old key cannot be deleted the new key is deleted again and the record is left
// untouched. Once the old key is gone the new key is kept even if the record
// cannot be written; the error log names it so it can be rebound.
func (s *Service) Renew(ctx context.Context, id string, planDays int) (_ *model.Customer, err error) {
	defer observe("renew", &err)

	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if planDays <= 0 {
		planDays = c.PlanDays
	}
	if err := validPlanDays(planDays); err != nil {
		return nil, err
	}

	key, err := s.keys.CreateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("create access key: %w", err)
	}
	if err := s.keys.RenameKey(ctx, key.ID, c.Name); err != nil {
		s.discardKey(ctx, key.ID)
		return nil, fmt.Errorf("name access key %s: %w", key.ID, err)
	}
	if err := s.keys.DeleteKey(ctx, c.OutlineKeyID); err != nil && !outline.IsNotFound(err) {
		s.discardKey(ctx, key.ID)
		return nil, fmt.Errorf("delete old access key %s: %w", c.OutlineKeyID, err)
	}

	now := s.now().UTC()
	oldKeyID := c.OutlineKeyID
	c.ExpiresAt = expiry.Extend(c.ExpiresAt, now, planDays)
	c.Status = model.StatusActive
	c.PlanDays = planDays
	c.OutlineKeyID = key.ID
	c.OutlineAccessURL = key.AccessURL
	c.UpdatedAt = now

	if err := s.customers.Update(ctx, *c); err != nil {
		s.log.Error("renewed key not persisted",
			zap.String("customer_id", c.ID), zap.String("old_key_id", oldKeyID),
			zap.String("key_id", key.ID), zap.String("access_url", key.AccessURL), zap.Error(err))
		return nil, fmt.Errorf("update customer: %w", err)
	}

	s.record(ctx, model.ActionRenew, c.ID, map[string]any{
		"oldKeyId":     oldKeyID,
		"newKeyId":     key.ID,
		"newExpiresAt": c.ExpiresAt,
		"planDays":     planDays,
	})
	return c, nil
}

// Revoke deletes the access key and marks the customer REVOKED. A key that is
// already gone counts as deleted; any other failure aborts.
func (s *Service) Revoke(ctx context.Context, id string) (_ *model.Customer, err error) {
	defer observe("revoke", &err)

	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.keys.DeleteKey(ctx, c.OutlineKeyID); err != nil && !outline.IsNotFound(err) {
		return nil, fmt.Errorf("delete access key %s: %w", c.OutlineKeyID, err)
	}

	prev := c.Status
	c.Status = model.StatusRevoked
	c.UpdatedAt = s.now().UTC()
	if err := s.customers.Update(ctx, *c); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}

	s.record(ctx, model.ActionRevoke, c.ID, map[string]any{
		"outlineKeyId": c.OutlineKeyID,
		"prevStatus":   prev,
	})
	return c, nil
}

// Lock cuts the device off by setting the key's data limit to zero.
func (s *Service) Lock(ctx context.Context, id string) (err error) {
	defer observe("lock", &err)
	return s.setLimit(ctx, id, model.ActionLock, func(c *model.Customer) error {
		return s.keys.SetDataLimit(ctx, c.OutlineKeyID, 0)
	})
}

// Unlock removes the key's data limit.
func (s *Service) Unlock(ctx context.Context, id string) (err error) {
	defer observe("unlock", &err)
	return s.setLimit(ctx, id, model.ActionUnlock, func(c *model.Customer) error {
		return s.keys.RemoveDataLimit(ctx, c.OutlineKeyID)
	})
}

func (s *Service) setLimit(ctx context.Context, id string, action model.AuditAction, apply func(*model.Customer) error) error {
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != model.StatusActive {
		return fmt.Errorf("%w: customer is not active", errs.ErrConflict)
	}

	if err := apply(c); err != nil {
		return fmt.Errorf("%s access key %s: %w", strings.TrimPrefix(action.String(), "customer."), c.OutlineKeyID, err)
	}

	meta := map[string]any{"outlineKeyId": c.OutlineKeyID}
	if action == model.ActionLock {
		meta["dataLimit"] = 0
	}
	s.record(ctx, action, c.ID, meta)
	return nil
}

// discardKey deletes a key this service just created and could not bind.
// Failures are logged; the caller reports the original error.
func (s *Service) discardKey(ctx context.Context, keyID string) {
	if err := s.keys.DeleteKey(ctx, keyID); err != nil && !outline.IsNotFound(err) {
		s.log.Error("orphaned access key",
			zap.String("key_id", keyID), zap.Error(err))
	}
}

// record appends an audit entry. The lifecycle change is already committed at
// this point, so a failed write is logged instead of returned.
func (s *Service) record(ctx context.Context, action model.AuditAction, customerID string, meta any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, action, customerID, meta); err != nil {
		s.log.Error("audit append failed",
			zap.String("action", action.String()), zap.String("customer_id", customerID), zap.Error(err))
	}
}

func observe(action string, err *error) {
	result := metrics.Result(*err)
	if errors.Is(*err, errs.ErrValidation) || errors.Is(*err, errs.ErrNotFound) || errors.Is(*err, errs.ErrConflict) {
		result = "rejected"
	}
	metrics.LifecycleTotal.WithLabelValues(action, result).Inc()
}

func validName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", fmt.Errorf("%w: name is longer than %d characters", errs.ErrValidation, maxNameLen)
	}
	return name, nil
}

func validPlanDays(n int) error {
	if n <= 0 || n > expiry.MaxPlanDays {
		return fmt.Errorf("%w: invalid planDays", errs.ErrValidation)
	}
	return nil
}

// validPhone normalizes p; nil or blank clears the phone.
func validPhone(p *string) (*string, error) {
	if p == nil {
		return nil, nil
	}
	n := util.NormalizePhone(*p)
	if n == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(n) > maxPhoneLen {
		return nil, fmt.Errorf("%w: phone is longer than %d characters", errs.ErrValidation, maxPhoneLen)
	}
	return &n, nil
}
