// Package csvio implements the CSV import and export contracts: investor and
// subscription bulk import with per-row validation, and cap table export with
// configurable column sets.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearmint/captable/internal/domain"
)

const dateLayout = "2006-01-02"

// RowError reports a rejected import row with its 1-based line number
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// InvestorRow is one parsed investor import row
type InvestorRow struct {
	// SourceRow is the 1-based line number the row came from
	SourceRow  int
	Name       string
	Email      string
	Wallet     string
	Type       domain.InvestorType
	Country    string
	InvestorID string
}

// InvestorImport is the result of parsing an investor CSV. Rejected rows do
// not abort the import; they are reported alongside the accepted ones.
type InvestorImport struct {
	Rows     []InvestorRow
	Rejected []RowError
}

// SubscriptionRow is one parsed subscription import row
type SubscriptionRow struct {
	// SourceRow is the 1-based line number the row came from
	SourceRow        int
	InvestorName     string
	FiatAmount       decimal.Decimal
	Currency         domain.Currency
	SubscriptionID   string
	Confirmed        bool
	SubscriptionDate time.Time
}

// SubscriptionImport is the result of parsing a subscription CSV
type SubscriptionImport struct {
	Rows     []SubscriptionRow
	Rejected []RowError
}

// detectDelimiter picks the delimiter that splits the header line into the
// most fields. Comma, semicolon and tab are the supported candidates.
func detectDelimiter(header string) rune {
	best := ','
	bestCount := strings.Count(header, ",")
	for _, candidate := range []rune{';', '\t'} {
		if count := strings.Count(header, string(candidate)); count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}

// readAll reads every record with the delimiter auto-detected from the first
// line. Records may have trailing empty fields; FieldsPerRecord is relaxed.
func readAll(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv input: %w", err)
	}

	content := strings.TrimPrefix(string(data), "\uFEFF")
	firstLine, _, _ := strings.Cut(content, "\n")

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = detectDelimiter(firstLine)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return records, nil
}

// headerIndex maps normalized header names to their column positions
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return index
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ImportInvestors parses an investor CSV. The header must carry name, email
// and wallet (case-insensitive); type, country and investorid are optional.
// Rows failing validation are rejected individually, never the whole file.
func ImportInvestors(r io.Reader) (*InvestorImport, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}

	index := headerIndex(records[0])
	for _, required := range []string{"name", "email", "wallet"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	result := &InvestorImport{}
	for i, record := range records[1:] {
		rowNum := i + 2

		row := InvestorRow{
			SourceRow:  rowNum,
			Name:       field(record, index, "name"),
			Email:      field(record, index, "email"),
			Wallet:     field(record, index, "wallet"),
			Country:    field(record, index, "country"),
			InvestorID: field(record, index, "investorid"),
		}

		if row.Name == "" {
			result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: "name is empty"})
			continue
		}
		if !domain.IsValidEmail(row.Email) {
			result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: fmt.Sprintf("invalid email %q", row.Email)})
			continue
		}
		if !domain.IsValidWalletAddress(row.Wallet) {
			result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: fmt.Sprintf("invalid wallet %q", row.Wallet)})
			continue
		}

		row.Type = domain.InvestorTypeIndividual
		if raw := field(record, index, "type"); raw != "" {
			investorType := domain.InvestorType(strings.ToLower(raw))
			if !domain.IsValidInvestorType(investorType) {
				result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: fmt.Sprintf("unknown investor type %q", raw)})
				continue
			}
			row.Type = investorType
		}

		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// ImportSubscriptions parses a subscription CSV. The header must carry
// investor name, fiat amount, currency and subscription id. A status of
// "Confirmed" (case-insensitive) marks the row confirmed; anything else,
// including an absent status column, leaves it unconfirmed. Dates use
// YYYY-MM-DD.
func ImportSubscriptions(r io.Reader) (*SubscriptionImport, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}

	index := headerIndex(records[0])
	for _, required := range []string{"investor name", "fiat amount", "currency", "subscription id"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	result := &SubscriptionImport{}
	for i, record := range records[1:] {
		rowNum := i + 2

		row := SubscriptionRow{
			SourceRow:      rowNum,
			InvestorName:   field(record, index, "investor name"),
			SubscriptionID: field(record, index, "subscription id"),
		}

		if row.InvestorName == "" {
			result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: "investor name is empty"})
			continue
		}

		rawAmount := field(record, index, "fiat amount")
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil || !amount.IsPositive() {
			result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: fmt.Sprintf("invalid fiat amount %q", rawAmount)})
			continue
		}
		row.FiatAmount = amount

		currency := domain.Currency(strings.ToUpper(field(record, index, "currency")))
		if !domain.IsValidCurrency(currency) {
			result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: fmt.Sprintf("unsupported currency %q", currency)})
			continue
		}
		row.Currency = currency

		row.Confirmed = strings.EqualFold(field(record, index, "status"), "confirmed")

		if rawDate := field(record, index, "date"); rawDate != "" {
			date, err := time.Parse(dateLayout, rawDate)
			if err != nil {
				result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", rawDate)})
				continue
			}
			row.SubscriptionDate = date
		}

		result.Rows = append(result.Rows, row)
	}

	return result, nil
}
