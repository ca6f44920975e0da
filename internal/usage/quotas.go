package usage

import (
	"context"
	"time"

	"github.com/puku-sh/gateway/pkg/api"
)

// Entitlements holds the configured monthly allowances per quota kind.
// Zero means unlimited.
type Entitlements struct {
	Chat        int64
	Completions int64
}

// Service answers quota queries for the product usage route.
type Service struct {
	store        Store
	entitlements Entitlements
}

func NewService(store Store, entitlements Entitlements) *Service {
	return &Service{store: store, entitlements: entitlements}
}

// periodStart returns the start of the current monthly accounting period.
func periodStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func periodReset(now time.Time) time.Time {
	return periodStart(now).AddDate(0, 1, 0)
}

func snapshot(entitlement, used int64) api.QuotaSnapshot {
	if entitlement <= 0 {
		return api.QuotaSnapshot{Unlimited: true, PercentRemaining: 100}
	}
	remaining := entitlement - used
	overage := int64(0)
	if remaining < 0 {
		overage = -remaining
		remaining = 0
	}
	pct := float64(remaining) / float64(entitlement) * 100
	return api.QuotaSnapshot{
		Entitlement:      entitlement,
		Remaining:        remaining,
		PercentRemaining: pct,
		OverageCount:     overage,
	}
}

// Quotas builds the quota report for the current period.
func (s *Service) Quotas(ctx context.Context) (*api.UsageResponse, error) {
	now := time.Now().UTC()

	used := map[string]int64{}
	if s.store != nil {
		totals, err := s.store.TotalsSince(ctx, periodStart(now))
		if err != nil {
			return nil, err
		}
		for _, t := range totals {
			used[t.Kind] = t.Requests
		}
	}

	return &api.UsageResponse{
		QuotaSnapshots: map[string]api.QuotaSnapshot{
			KindChat:        snapshot(s.entitlements.Chat, used[KindChat]),
			KindCompletions: snapshot(s.entitlements.Completions, used[KindCompletions]),
		},
		QuotaResetDateUTC: periodReset(now).Format(time.RFC3339),
	}, nil
}
