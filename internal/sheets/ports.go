package sheets

import (
	"context"

	"oshikatsu/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryExporter publishes a user's monthly summaries to an external
	// sheet. Each call replaces what was exported before for that user.
	SummaryExporter interface {
		ExportMonthly(ctx context.Context, username string, rows []core.MonthlySummary) (written int, err error)
	}
)

// MonthlyHeader is the first row of every exported table.
var MonthlyHeader = []string{
	"Month", "Drink", "Snack", "Main", "Irregular", "Total", "Badges", "Itabags", "Updated",
}

// MonthlyRow renders one summary in MonthlyHeader column order.
func MonthlyRow(m core.MonthlySummary) []any {
	updated := ""
	if !m.UpdatedAt.IsZero() {
		updated = m.UpdatedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return []any{
		m.Key().String(),
		m.Amounts.Drink,
		m.Amounts.Snack,
		m.Amounts.Main,
		m.Amounts.Irregular,
		m.GrandTotal,
		m.BadgeEquivalent,
		m.ItabagEquivalent,
		updated,
	}
}

// MonthlyTable is MonthlyHeader followed by one MonthlyRow per summary.
func MonthlyTable(rows []core.MonthlySummary) [][]any {
	table := make([][]any, 0, len(rows)+1)
	header := make([]any, len(MonthlyHeader))
	for i, h := range MonthlyHeader {
		header[i] = h
	}
	table = append(table, header)
	for _, m := range rows {
		table = append(table, MonthlyRow(m))
	}
	return table
}
