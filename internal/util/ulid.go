package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID generates a new lower-cased ULID string used as a customer id.
func NewID() string {
	return NewIDAt(time.Now())
}

func NewIDAt(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)

	return strings.ToLower(ulid.MustNew(ulid.Timestamp(t), entropy).String())
}

// ValidID reports whether s parses as a ULID.
func ValidID(s string) bool {
	_, err := ulid.ParseStrict(strings.ToUpper(s))
	return err == nil
}
