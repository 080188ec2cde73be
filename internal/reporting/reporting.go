// Package reporting computes derived statistics over an in-memory investor
// collection. Every function is deterministic and side-effect free; callers
// recompute on demand rather than caching.
package reporting

import (
	"github.com/shopspring/decimal"

	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/store/schema"
)

// TotalAllocated sums token amounts over every allocated subscription
func TotalAllocated(investors []schema.Investor) decimal.Decimal {
	total := decimal.Zero
	for _, investor := range investors {
		for _, subscription := range investor.Subscriptions {
			if subscription.State.Allocated() && subscription.TokenAmount != nil {
				total = total.Add(*subscription.TokenAmount)
			}
		}
	}
	return total
}

// TotalDistributed sums token amounts over distributed subscriptions only
func TotalDistributed(investors []schema.Investor) decimal.Decimal {
	total := decimal.Zero
	for _, investor := range investors {
		for _, subscription := range investor.Subscriptions {
			if subscription.State.Distributed() && subscription.TokenAmount != nil {
				total = total.Add(*subscription.TokenAmount)
			}
		}
	}
	return total
}

// DistributionProgress returns the distributed share of allocated tokens as a
// rounded percentage. Zero allocation means zero progress.
func DistributionProgress(investors []schema.Investor) int {
	allocated := TotalAllocated(investors)
	if allocated.IsZero() {
		return 0
	}
	pct := TotalDistributed(investors).
		Div(allocated).
		Mul(decimal.NewFromInt(100)).
		Round(0)
	return int(pct.IntPart())
}

// KYCCountSummary holds the KYC status counts shown on dashboards
type KYCCountSummary struct {
	Verified int `json:"verified"`
	Pending  int `json:"pending"`
	Expired  int `json:"expired"`
}

// KYCCounts tallies investors by the three dashboard-relevant KYC statuses
func KYCCounts(investors []schema.Investor) KYCCountSummary {
	var summary KYCCountSummary
	for _, investor := range investors {
		switch investor.KYCStatus {
		case domain.KYCStatusVerified:
			summary.Verified++
		case domain.KYCStatusPending:
			summary.Pending++
		case domain.KYCStatusExpired:
			summary.Expired++
		}
	}
	return summary
}

// TypeCategoryCounts tallies investors by their type's higher-level category
func TypeCategoryCounts(investors []schema.Investor) map[domain.TypeCategory]int {
	counts := make(map[domain.TypeCategory]int)
	for _, investor := range investors {
		if category := domain.CategoryOf(investor.Type); category != "" {
			counts[category]++
		}
	}
	return counts
}

// TokenTypeStats summarizes one token type over a selection of investors
type TokenTypeStats struct {
	// ToMint is the sum of confirmed fiat amounts subscribed for this type
	ToMint decimal.Decimal `json:"to_mint"`
	// Minted reports whether any allocation exists for this type
	Minted bool `json:"minted"`
}

// TokenTypeSummary aggregates the given (pre-filtered) investors per token
// type: confirmed fiat amounts to mint, plus whether a mint already happened
func TokenTypeSummary(selection []schema.Investor) map[domain.TokenType]TokenTypeStats {
	summary := make(map[domain.TokenType]TokenTypeStats)
	for _, investor := range selection {
		for _, subscription := range investor.Subscriptions {
			if subscription.TokenType == nil {
				continue
			}
			tokenType := *subscription.TokenType
			stats := summary[tokenType]
			if subscription.State.Confirmed() {
				stats.ToMint = stats.ToMint.Add(subscription.FiatAmount)
			}
			if subscription.State.Allocated() {
				stats.Minted = true
			}
			summary[tokenType] = stats
		}
	}
	return summary
}
