package customer

import (
	"context"
	"fmt"

	"github.com/jmehdipour/outline-admin/internal/metrics"
	"github.com/jmehdipour/outline-admin/internal/model"
	"github.com/jmehdipour/outline-admin/internal/outline"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepResult is the outcome of one expiry sweep.
type SweepResult struct {
	Checked int `json:"checked"`
	Revoked int `json:"revoked"`
	Failed  int `json:"failed"`
}

// ExpireSweep expires ACTIVE customers whose plan has run out. Key deletions
// run in parallel; a customer whose key could not be deleted stays ACTIVE and
// is picked up again by the next sweep. Status changes are written in a single
// batch after every deletion was attempted.
func (s *Service) ExpireSweep(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()

	candidates, err := s.customers.ListOverdue(ctx, now, s.sweepBatch)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list overdue: %w", err)
	}
	res := SweepResult{Checked: len(candidates)}
	metrics.SweepCustomersTotal.WithLabelValues("checked").Add(float64(len(candidates)))
	if len(candidates) == 0 {
		return res, nil
	}

	// each goroutine writes only its own slot
	deleted := make([]bool, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.sweepConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			err := s.keys.DeleteKey(ctx, c.OutlineKeyID)
			if err == nil || outline.IsNotFound(err) {
				deleted[i] = true
				return nil
			}
			s.log.Warn("expire: delete access key failed",
				zap.String("customer_id", c.ID), zap.String("key_id", c.OutlineKeyID), zap.Error(err))
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]string, 0, len(candidates))
	byID := make(map[string]model.Customer, len(candidates))
	for i, c := range candidates {
		if deleted[i] {
			ids = append(ids, c.ID)
			byID[c.ID] = c
		}
	}
	res.Failed = len(candidates) - len(ids)
	metrics.SweepCustomersTotal.WithLabelValues("failed").Add(float64(res.Failed))

	n, err := s.customers.BatchExpire(ctx, ids, now)
	if err != nil {
		return res, fmt.Errorf("batch expire: %w", err)
	}
	res.Revoked = int(n)
	metrics.SweepCustomersTotal.WithLabelValues("expired").Add(float64(n))

	expired := ids
	if int(n) != len(ids) {
		// some rows were renewed or revoked meanwhile; audit only what flipped
		expired = s.stillExpired(ctx, ids)
	}
	for _, id := range expired {
		s.record(ctx, model.ActionExpire, id, map[string]any{
			"outlineKeyId": byID[id].OutlineKeyID,
			"expiresAt":    byID[id].ExpiresAt,
		})
	}

	s.log.Info("expiry sweep done",
		zap.Int("checked", res.Checked), zap.Int("revoked", res.Revoked), zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Service) stillExpired(ctx context.Context, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		c, err := s.customers.GetByID(ctx, id)
		if err == nil && c.Status == model.StatusExpired {
			out = append(out, id)
		}
	}
	return out
}
