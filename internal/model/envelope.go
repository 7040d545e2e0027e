package model

import (
	"encoding/json"
	"time"
)

// AuditEnvelope is the outbox payload published to Kafka (via Debezium outbox SMT)
// and consumed by the audit sink.
type AuditEnvelope struct {
	ID         int64           `json:"id"` // audit_logs.id
	Action     AuditAction     `json:"action"`
	CustomerID string          `json:"customer_id"`
	Meta       json.RawMessage `json:"meta"`
	CreatedAt  time.Time       `json:"created_at"`
}
