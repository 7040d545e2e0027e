package model

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	ActionCreate AuditAction = "customer.create"
	ActionRenew  AuditAction = "customer.renew"
	ActionRevoke AuditAction = "customer.revoke"
	ActionUpdate AuditAction = "customer.update"
	ActionDelete AuditAction = "customer.delete"
	ActionExpire AuditAction = "customer.expire"
	ActionLock   AuditAction = "customer.lock"
	ActionUnlock AuditAction = "customer.unlock"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreate, ActionRenew, ActionRevoke, ActionUpdate,
		ActionDelete, ActionExpire, ActionLock, ActionUnlock:
		return true
	}
	return false
}

// AuditLog is an append-only row in audit_logs. CustomerID is not a foreign key:
// entries outlive deleted customers.
type AuditLog struct {
	ID         int64           `db:"id"          json:"id"`
	Action     AuditAction     `db:"action"      json:"action"`
	CustomerID string          `db:"customer_id" json:"customerId"`
	Meta       json.RawMessage `db:"meta"        json:"meta"`
	CreatedAt  time.Time       `db:"created_at"  json:"createdAt"`
}
