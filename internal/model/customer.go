package model

import (
	"strings"
	"time"
)

type CustomerStatus string

const (
	StatusActive  CustomerStatus = "ACTIVE"
	StatusExpired CustomerStatus = "EXPIRED"
	StatusRevoked CustomerStatus = "REVOKED"
)

func (s CustomerStatus) String() string { return string(s) }

func (s CustomerStatus) Valid() bool {
	return s == StatusActive || s == StatusExpired || s == StatusRevoked
}

// ParseCustomerStatus accepts any casing; empty input is not a status.
func ParseCustomerStatus(raw string) (CustomerStatus, bool) {
	s := CustomerStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Customer is the DB entity persisted in the customers table.
// ExpiresAt is always UTC.
type Customer struct {
	ID               string         `db:"id"                 json:"id"`
	Name             string         `db:"name"               json:"name"`
	Phone            *string        `db:"phone"              json:"phone"`
	PlanDays         int            `db:"plan_days"          json:"planDays"`
	Status           CustomerStatus `db:"status"             json:"status"`
	OutlineKeyID     string         `db:"outline_key_id"     json:"outlineKeyId"`
	OutlineAccessURL string         `db:"outline_access_url" json:"outlineAccessUrl"`
	ExpiresAt        time.Time      `db:"expires_at"         json:"expiresAt"`
	CreatedAt        time.Time      `db:"created_at"         json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at"         json:"updatedAt"`
}

// Overdue reports whether an ACTIVE customer has reached its expiry instant.
func (c Customer) Overdue(now time.Time) bool {
	return c.Status == StatusActive && !c.ExpiresAt.After(now)
}

// Deletable reports whether the record may be hard deleted.
func (c Customer) Deletable(now time.Time) bool {
	return c.Status != StatusActive || c.Overdue(now)
}
