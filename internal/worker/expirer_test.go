package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmehdipour/outline-admin/internal/service/customer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) ExpireSweep(context.Context) (customer.SweepResult, error) {
	if s.calls.Add(1)%2 == 0 {
		return customer.SweepResult{}, errors.New("mysql gone")
	}
	return customer.SweepResult{Checked: 1, Revoked: 1}, nil
}

func TestExpirer_RunsImmediatelyAndOnInterval(t *testing.T) {
	sw := &countingSweeper{}
	w := NewExpirer(sw, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return sw.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	assert.NoError(t, <-done)
}
