package csvio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/store/schema"
)

func TestImportInvestors(t *testing.T) {
	t.Run("comma delimited", func(t *testing.T) {
		input := strings.Join([]string{
			"Name,Email,Wallet,Type,Country",
			"John Doe,john@example.com,0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e,pension_fund,US",
			"Jane Doe,jane@example.com,0x8ba1f109551bD432803012645Ac136ddd64DBA72,,DE",
		}, "\n")

		result, err := ImportInvestors(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result.Rows, 2)
		assert.Empty(t, result.Rejected)

		assert.Equal(t, "John Doe", result.Rows[0].Name)
		assert.Equal(t, domain.InvestorTypePensionFund, result.Rows[0].Type)
		assert.Equal(t, "US", result.Rows[0].Country)
		// missing type falls back to individual
		assert.Equal(t, domain.InvestorTypeIndividual, result.Rows[1].Type)
	})

	t.Run("semicolon and tab detected", func(t *testing.T) {
		for _, delim := range []string{";", "\t"} {
			input := strings.Join([]string{
				strings.Join([]string{"name", "email", "wallet"}, delim),
				strings.Join([]string{"John", "john@example.com", "0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e"}, delim),
			}, "\n")

			result, err := ImportInvestors(strings.NewReader(input))
			require.NoError(t, err)
			require.Len(t, result.Rows, 1)
			assert.Equal(t, "john@example.com", result.Rows[0].Email)
		}
	})

	t.Run("utf-8 BOM is stripped", func(t *testing.T) {
		input := "\uFEFFname,email,wallet\nJohn,john@example.com,0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e\n"
		result, err := ImportInvestors(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, "John", result.Rows[0].Name)
	})

	t.Run("headers are case insensitive", func(t *testing.T) {
		input := "NAME,EMAIL,WALLET\nJohn,john@example.com,0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e\n"
		result, err := ImportInvestors(strings.NewReader(input))
		require.NoError(t, err)
		assert.Len(t, result.Rows, 1)
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := ImportInvestors(strings.NewReader("name,email\nJohn,john@example.com\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wallet")
	})

	t.Run("bad rows rejected individually", func(t *testing.T) {
		input := strings.Join([]string{
			"name,email,wallet,type",
			"Good,good@example.com,0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e,",
			"Bad Email,not-an-email,0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e,",
			"Bad Wallet,wallet@example.com,0xdeadbeef,",
			"Bad Type,type@example.com,0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e,time_traveler",
		}, "\n")

		result, err := ImportInvestors(strings.NewReader(input))
		require.NoError(t, err)
		assert.Len(t, result.Rows, 1)
		require.Len(t, result.Rejected, 3)

		assert.Equal(t, 3, result.Rejected[0].Row)
		assert.Contains(t, result.Rejected[0].Reason, "email")
		assert.Equal(t, 4, result.Rejected[1].Row)
		assert.Contains(t, result.Rejected[1].Reason, "wallet")
		assert.Equal(t, 5, result.Rejected[2].Row)
		assert.Contains(t, result.Rejected[2].Reason, "investor type")
	})
}

func TestImportSubscriptions(t *testing.T) {
	t.Run("parses rows", func(t *testing.T) {
		input := strings.Join([]string{
			"Investor Name,Fiat Amount,Currency,Subscription ID,Status,Date",
			"John Doe,10000,USD,SUB-1,Confirmed,2025-06-01",
			"Jane Doe,2500.50,eur,SUB-2,,",
		}, "\n")

		result, err := ImportSubscriptions(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result.Rows, 2)
		assert.Empty(t, result.Rejected)

		assert.Equal(t, "John Doe", result.Rows[0].InvestorName)
		assert.True(t, result.Rows[0].FiatAmount.Equal(decimal.NewFromInt(10000)))
		assert.Equal(t, domain.CurrencyUSD, result.Rows[0].Currency)
		assert.True(t, result.Rows[0].Confirmed)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), result.Rows[0].SubscriptionDate)

		// lowercase currency is accepted, absent status means unconfirmed
		assert.Equal(t, domain.CurrencyEUR, result.Rows[1].Currency)
		assert.False(t, result.Rows[1].Confirmed)
	})

	t.Run("bad rows rejected individually", func(t *testing.T) {
		input := strings.Join([]string{
			"investor name,fiat amount,currency,subscription id,date",
			"John,0,USD,SUB-1,",
			"Jane,100,JPY,SUB-2,",
			"Jim,100,USD,SUB-3,01/06/2025",
		}, "\n")

		result, err := ImportSubscriptions(strings.NewReader(input))
		require.NoError(t, err)
		assert.Empty(t, result.Rows)
		require.Len(t, result.Rejected, 3)
		assert.Contains(t, result.Rejected[0].Reason, "fiat amount")
		assert.Contains(t, result.Rejected[1].Reason, "currency")
		assert.Contains(t, result.Rejected[2].Reason, "YYYY-MM-DD")
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := ImportSubscriptions(strings.NewReader("investor name,currency\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fiat amount")
	})
}

func TestExportCapTable(t *testing.T) {
	tokenType := domain.TokenTypeERC20
	tokenAmount := decimal.NewFromInt(1000)
	txHash := "0xabc123"
	distributedAt := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	investors := []schema.Investor{
		{
			Name:      "John Doe",
			Email:     "john@example.com",
			Wallet:    "0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e",
			Type:      domain.InvestorTypeIndividual,
			KYCStatus: domain.KYCStatusVerified,
			Subscriptions: []schema.TokenSubscription{
				{
					SubscriptionID: "SUB-1",
					FiatAmount:     decimal.NewFromInt(10000),
					Currency:       domain.CurrencyUSD,
					State:          domain.StateDistributed,
					TokenType:      &tokenType,
					TokenAmount:    &tokenAmount,
					Allocation: &schema.TokenAllocation{
						Distributed:        true,
						DistributionDate:   &distributedAt,
						DistributionTxHash: &txHash,
					},
				},
			},
		},
		{
			Name:   "Empty Investor",
			Email:  "empty@example.com",
			Wallet: "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
			Type:   domain.InvestorTypeCorporation,
		},
	}

	var buf bytes.Buffer
	err := ExportCapTable(&buf, investors, ExportOptions{
		IncludeWallet:       true,
		IncludeKYC:          true,
		IncludeDistribution: true,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// header + one subscription row + one blank-subscription row + TOTAL
	require.Len(t, lines, 4)

	assert.Contains(t, lines[0], "Wallet")
	assert.Contains(t, lines[0], "KYC Status")
	assert.Contains(t, lines[0], "Distribution Tx Hash")

	assert.Contains(t, lines[1], "SUB-1")
	assert.Contains(t, lines[1], "0xabc123")

	// investors without subscriptions still get a row
	assert.Contains(t, lines[2], "Empty Investor")

	assert.True(t, strings.HasPrefix(lines[3], "TOTAL"))
	assert.Contains(t, lines[3], "10000")
	assert.Contains(t, lines[3], "1000")
}

func TestExportRoundTripsThroughImport(t *testing.T) {
	investors := []schema.Investor{
		{
			Name:   "John Doe",
			Email:  "john@example.com",
			Wallet: "0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e",
			Type:   domain.InvestorTypeIndividual,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportCapTable(&buf, investors, ExportOptions{IncludeWallet: true}))

	// drop the trailing TOTAL row before re-importing
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	trimmed := strings.Join(lines[:len(lines)-1], "\n")

	result, err := ImportInvestors(strings.NewReader(trimmed))
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "John Doe", result.Rows[0].Name)
	assert.Equal(t, "john@example.com", result.Rows[0].Email)
	assert.Equal(t, investors[0].Wallet, result.Rows[0].Wallet)
}
