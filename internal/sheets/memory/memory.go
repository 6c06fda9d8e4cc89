package memory

import (
	"context"
	"sync"

	"oshikatsu/internal/core"
	ports "oshikatsu/internal/sheets"
)

var _ ports.SummaryExporter = (*Store)(nil)

// Store keeps the last export per user in memory.
type Store struct {
	mu     sync.Mutex
	tables map[string][][]any
}

func New() *Store {
	return &Store{tables: map[string][][]any{}}
}

// ExportMonthly replaces the user's table with a header plus one row per
// summary.
func (s *Store) ExportMonthly(_ context.Context, username string, rows []core.MonthlySummary) (int, error) {
	table := ports.MonthlyTable(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[username] = table
	return len(rows), nil
}

// Table returns a copy of the last export for username, header included.
func (s *Store) Table(username string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.tables[username]...)
}
