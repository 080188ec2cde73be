package reporting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/store/schema"
)

func subscription(state domain.SubscriptionState, tokenType domain.TokenType, tokenAmount int64, fiatAmount int64) schema.TokenSubscription {
	s := schema.TokenSubscription{
		State:      state,
		FiatAmount: decimal.NewFromInt(fiatAmount),
		Currency:   domain.CurrencyUSD,
	}
	if tokenType != "" {
		s.TokenType = &tokenType
	}
	if tokenAmount > 0 {
		amount := decimal.NewFromInt(tokenAmount)
		s.TokenAmount = &amount
	}
	return s
}

func TestTotals(t *testing.T) {
	// one distributed 500, one allocated-but-not-distributed 300
	investors := []schema.Investor{
		{
			Name:          "Alice",
			Subscriptions: []schema.TokenSubscription{subscription(domain.StateDistributed, domain.TokenTypeERC20, 500, 5000)},
		},
		{
			Name:          "Bob",
			Subscriptions: []schema.TokenSubscription{subscription(domain.StateAllocated, domain.TokenTypeERC20, 300, 3000)},
		},
	}

	assert.True(t, TotalAllocated(investors).Equal(decimal.NewFromInt(800)))
	assert.True(t, TotalDistributed(investors).Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 63, DistributionProgress(investors))
}

func TestTotalsIgnorePendingAndConfirmed(t *testing.T) {
	investors := []schema.Investor{
		{
			Subscriptions: []schema.TokenSubscription{
				subscription(domain.StatePending, "", 0, 1000),
				subscription(domain.StateConfirmed, "", 0, 2000),
			},
		},
	}

	assert.True(t, TotalAllocated(investors).IsZero())
	assert.True(t, TotalDistributed(investors).IsZero())
	assert.Equal(t, 0, DistributionProgress(investors))
}

func TestDistributionProgressRounding(t *testing.T) {
	tests := []struct {
		name        string
		allocated   int64
		distributed int64
		want        int
	}{
		{name: "rounds half up", allocated: 800, distributed: 500, want: 63},
		{name: "exact", allocated: 1000, distributed: 250, want: 25},
		{name: "all distributed", allocated: 300, distributed: 300, want: 100},
		{name: "rounds down", allocated: 3, distributed: 1, want: 33},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			remaining := tc.allocated - tc.distributed
			investors := []schema.Investor{
				{Subscriptions: []schema.TokenSubscription{
					subscription(domain.StateDistributed, domain.TokenTypeERC20, tc.distributed, 0),
					subscription(domain.StateAllocated, domain.TokenTypeERC20, remaining, 0),
				}},
			}
			assert.Equal(t, tc.want, DistributionProgress(investors))
		})
	}
}

func TestKYCCounts(t *testing.T) {
	investors := []schema.Investor{
		{KYCStatus: domain.KYCStatusVerified},
		{KYCStatus: domain.KYCStatusVerified},
		{KYCStatus: domain.KYCStatusPending},
		{KYCStatus: domain.KYCStatusExpired},
		{KYCStatus: domain.KYCStatusNotStarted},
		{KYCStatus: domain.KYCStatusFailed},
	}

	counts := KYCCounts(investors)
	assert.Equal(t, 2, counts.Verified)
	assert.Equal(t, 1, counts.Pending)
	assert.Equal(t, 1, counts.Expired)
}

func TestTypeCategoryCounts(t *testing.T) {
	investors := []schema.Investor{
		{Type: domain.InvestorTypePensionFund},
		{Type: domain.InvestorTypeBank},
		{Type: domain.InvestorTypeIndividual},
		{Type: domain.InvestorTypeHedgeFund},
		{Type: domain.InvestorTypeDAO},
		{Type: domain.InvestorType("unknown")},
	}

	counts := TypeCategoryCounts(investors)
	assert.Equal(t, 2, counts[domain.CategoryInstitutional])
	assert.Equal(t, 1, counts[domain.CategoryRetail])
	assert.Equal(t, 1, counts[domain.CategoryAlternative])
	assert.Equal(t, 1, counts[domain.CategoryDigital])
	assert.NotContains(t, counts, domain.CategoryCorporate)
}

func TestTokenTypeSummary(t *testing.T) {
	erc20 := domain.TokenTypeERC20
	erc721 := domain.TokenTypeERC721

	investors := []schema.Investor{
		{
			Subscriptions: []schema.TokenSubscription{
				// allocated rows keep their confirmed fiat amount in play
				subscription(domain.StateAllocated, erc20, 1000, 10000),
				subscription(domain.StateConfirmed, erc20, 0, 5000),
			},
		},
		{
			Subscriptions: []schema.TokenSubscription{
				subscription(domain.StateConfirmed, erc721, 0, 2000),
				// pending rows contribute nothing
				subscription(domain.StatePending, erc721, 0, 9999),
				// no token type chosen yet
				subscription(domain.StateConfirmed, "", 0, 1234),
			},
		},
	}

	summary := TokenTypeSummary(investors)
	require := assert.New(t)

	require.Len(summary, 2)
	require.True(summary[erc20].ToMint.Equal(decimal.NewFromInt(15000)))
	require.True(summary[erc20].Minted)
	require.True(summary[erc721].ToMint.Equal(decimal.NewFromInt(2000)))
	require.False(summary[erc721].Minted)
}
