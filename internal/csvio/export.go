package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearmint/captable/internal/store/schema"
)

// ExportOptions toggles optional column groups in the cap table export
type ExportOptions struct {
	IncludeKYC          bool
	IncludeWallet       bool
	IncludeDistribution bool
}

// ExportCapTable writes one row per subscription. Investors without
// subscriptions still appear with blank subscription fields, and a trailing
// TOTAL row sums fiat and token amounts. The (name, email, wallet) columns
// round-trip through ImportInvestors.
func ExportCapTable(w io.Writer, investors []schema.Investor, opts ExportOptions) error {
	writer := csv.NewWriter(w)

	header := []string{"Name", "Email"}
	if opts.IncludeWallet {
		header = append(header, "Wallet")
	}
	header = append(header, "Type")
	if opts.IncludeKYC {
		header = append(header, "KYC Status", "KYC Expiry")
	}
	header = append(header, "Subscription ID", "Fiat Amount", "Currency", "State", "Token Type", "Token Amount")
	if opts.IncludeDistribution {
		header = append(header, "Distribution Date", "Distribution Tx Hash")
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	totalFiat := decimal.Zero
	totalTokens := decimal.Zero

	writeRow := func(investor schema.Investor, subscription *schema.TokenSubscription) error {
		row := []string{investor.Name, investor.Email}
		if opts.IncludeWallet {
			row = append(row, investor.Wallet)
		}
		row = append(row, string(investor.Type))
		if opts.IncludeKYC {
			expiry := ""
			if investor.KYCExpiryDate != nil {
				expiry = investor.KYCExpiryDate.Format(dateLayout)
			}
			row = append(row, string(investor.KYCStatus), expiry)
		}

		if subscription == nil {
			row = append(row, "", "", "", "", "", "")
			if opts.IncludeDistribution {
				row = append(row, "", "")
			}
		} else {
			tokenType, tokenAmount := "", ""
			if subscription.TokenType != nil {
				tokenType = string(*subscription.TokenType)
			}
			if subscription.TokenAmount != nil {
				tokenAmount = subscription.TokenAmount.String()
				totalTokens = totalTokens.Add(*subscription.TokenAmount)
			}
			totalFiat = totalFiat.Add(subscription.FiatAmount)

			row = append(row,
				subscription.SubscriptionID,
				subscription.FiatAmount.String(),
				string(subscription.Currency),
				string(subscription.State),
				tokenType,
				tokenAmount,
			)
			if opts.IncludeDistribution {
				date, txHash := "", ""
				if subscription.Allocation != nil {
					if subscription.Allocation.DistributionDate != nil {
						date = subscription.Allocation.DistributionDate.Format(time.RFC3339)
					}
					if subscription.Allocation.DistributionTxHash != nil {
						txHash = *subscription.Allocation.DistributionTxHash
					}
				}
				row = append(row, date, txHash)
			}
		}
		return writer.Write(row)
	}

	for _, investor := range investors {
		if len(investor.Subscriptions) == 0 {
			if err := writeRow(investor, nil); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
			continue
		}
		for i := range investor.Subscriptions {
			if err := writeRow(investor, &investor.Subscriptions[i]); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}

	total := []string{"TOTAL", ""}
	if opts.IncludeWallet {
		total = append(total, "")
	}
	total = append(total, "")
	if opts.IncludeKYC {
		total = append(total, "", "")
	}
	total = append(total, "", totalFiat.String(), "", "", "", totalTokens.String())
	if opts.IncludeDistribution {
		total = append(total, "", "")
	}
	if err := writer.Write(total); err != nil {
		return fmt.Errorf("failed to write csv total row: %w", err)
	}

	writer.Flush()
	return writer.Error()
}
