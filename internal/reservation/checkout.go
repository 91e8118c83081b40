package reservation

import (
	"fmt"
	"strings"

	"github.com/dom/pulse/internal/domain"
	"github.com/google/uuid"
)

type SummaryLine struct {
	TicketTypeID   uuid.UUID
	Name           string
	Quantity       int
	Currency       string
	UnitPriceCents int
	SubtotalCents  int
}

// Summary is the checkout view of the current selections. TotalCents and
// Currency are only set when every selected line shares one currency;
// Totals always holds the amount per currency.
type Summary struct {
	Lines      []SummaryLine
	TotalCents int
	Currency   string
	Totals     map[string]int
}

func (s Summary) Empty() bool {
	return len(s.Lines) == 0
}

// MixedCurrency reports selections priced in more than one currency.
func (s Summary) MixedCurrency() bool {
	return len(s.Totals) > 1
}

// Checkout summarises the positive selections. Prices are informational; the
// server computes the charged total.
func (w *Workflow) Checkout() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	summary := Summary{Currency: domain.DefaultCurrency, Totals: make(map[string]int)}
	for _, t := range w.types {
		q := w.quantities[t.ID]
		if q <= 0 {
			continue
		}
		line := SummaryLine{
			TicketTypeID:   t.ID,
			Name:           t.Name,
			Quantity:       q,
			Currency:       currencyOf(t),
			UnitPriceCents: t.PriceCents,
			SubtotalCents:  q * t.PriceCents,
		}
		summary.Lines = append(summary.Lines, line)
		summary.Totals[line.Currency] += line.SubtotalCents
	}

	switch len(summary.Totals) {
	case 0:
	case 1:
		for currency, total := range summary.Totals {
			summary.Currency = currency
			summary.TotalCents = total
		}
	default:
		summary.Currency = ""
	}
	return summary
}

func currencyOf(t domain.TicketType) string {
	if c := strings.ToUpper(strings.TrimSpace(t.Currency)); c != "" {
		return c
	}
	return domain.DefaultCurrency
}

// FormatCents renders an amount in minor units as "12.50 CAD".
func FormatCents(cents int, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}
