package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"09 7812 3456":     "+95978123456",
		"09-451-234-567":   "+959451234567",
		"959451234567":     "+959451234567",
		"0095 9 451234567": "+959451234567",
		"+66 81 234 5678":  "+66812345678",
		"  ":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), "input %q", in)
	}
}

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewIDAt(time.Now().Add(time.Second))

	require.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	assert.True(t, ValidID(a))
	assert.False(t, ValidID("not-an-id"))
}
