package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"oshikatsu/internal/core"
)

// memLedger is an in-memory Ledger and LedgerWriter.
type memLedger struct {
	mu        sync.Mutex
	users     map[int64]bool
	purchases []core.PurchaseRecord
	reads     int
	readErr   error
}

func newMemLedger(users ...int64) *memLedger {
	l := &memLedger{users: map[int64]bool{}}
	for _, u := range users {
		l.users[u] = true
	}
	return l
}

func (l *memLedger) add(userID int64, date core.Date, p core.TimePeriod, a core.Amounts) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purchases = append(l.purchases, core.PurchaseRecord{
		ID: int64(len(l.purchases) + 1), UserID: userID, Date: date, TimePeriod: p, Amounts: a,
	})
}

func (l *memLedger) UserExists(_ context.Context, userID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	return l.users[userID], nil
}

func (l *memLedger) AppendPurchase(_ context.Context, p core.PurchaseRecord) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.users[p.UserID] {
		return 0, fmt.Errorf("%w: %d", core.ErrUserNotFound, p.UserID)
	}
	p.ID = int64(len(l.purchases) + 1)
	l.purchases = append(l.purchases, p)
	return p.ID, nil
}

func (l *memLedger) inRange(userID int64, start, end core.Date) []core.PurchaseRecord {
	var out []core.PurchaseRecord
	for _, p := range l.purchases {
		if p.UserID != userID || p.Date.Before(start.Time) || p.Date.After(end.Time) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (l *memLedger) PurchasesInRange(_ context.Context, userID int64, start, end core.Date) ([]core.PurchaseRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.readErr != nil {
		return nil, l.readErr
	}
	return l.inRange(userID, start, end), nil
}

func (l *memLedger) TimePeriodSubtotals(_ context.Context, userID int64, start, end core.Date) (map[core.TimePeriod]core.Amounts, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	out := map[core.TimePeriod]core.Amounts{}
	for _, p := range l.inRange(userID, start, end) {
		out[p.TimePeriod] = out[p.TimePeriod].Add(p.Amounts)
	}
	return out, nil
}

// memSettings is an in-memory SettingsStore.
type memSettings struct {
	mu    sync.Mutex
	byID  map[int64]core.ConversionSettings
	err   error
	reads int
}

func newMemSettings() *memSettings {
	return &memSettings{byID: map[int64]core.ConversionSettings{}}
}

func (s *memSettings) withDefaults(userIDs ...int64) *memSettings {
	for _, id := range userIDs {
		s.byID[id] = core.DefaultConversionSettings(id)
	}
	return s
}

func (s *memSettings) GetSettings(_ context.Context, userID int64) (core.ConversionSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return core.ConversionSettings{}, s.err
	}
	cs, ok := s.byID[userID]
	if !ok {
		return core.ConversionSettings{}, fmt.Errorf("user %d: %w", userID, core.ErrMissingSettings)
	}
	return cs, nil
}

func (s *memSettings) UpdateSettings(_ context.Context, userID, badgePrice, itabagCount int64) (core.ConversionSettings, error) {
	cs, err := core.NewConversionSettings(userID, badgePrice, itabagCount)
	if err != nil {
		return core.ConversionSettings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[userID] = cs
	return cs, nil
}

// memStore is an in-memory SummaryWriter and SummaryReader keyed like the
// SQL unique constraints.
type memStore struct {
	mu        sync.Mutex
	daily     map[string]core.DailySummary
	weekly    map[string]core.WeeklySummary
	monthly   map[string]core.MonthlySummary
	writes    int
	failWeeks bool
	now       time.Time
}

func newMemStore() *memStore {
	return &memStore{
		daily:   map[string]core.DailySummary{},
		weekly:  map[string]core.WeeklySummary{},
		monthly: map[string]core.MonthlySummary{},
		now:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var errWeeklyDown = errors.New("weekly table unavailable")

func key(userID int64, bucket string) string {
	return fmt.Sprintf("%d/%s", userID, bucket)
}

func (m *memStore) UpsertDaily(_ context.Context, s core.DailySummary) (core.DailySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	s.UpdatedAt = m.now
	m.daily[key(s.UserID, s.Date.String())] = s
	return s, nil
}

func (m *memStore) UpsertWeekly(_ context.Context, s core.WeeklySummary) (core.WeeklySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWeeks {
		return core.WeeklySummary{}, errWeeklyDown
	}
	m.writes++
	s.UpdatedAt = m.now
	m.weekly[key(s.UserID, s.StartDate.String())] = s
	return s, nil
}

func (m *memStore) UpsertMonthly(_ context.Context, s core.MonthlySummary) (core.MonthlySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	s.UpdatedAt = m.now
	m.monthly[key(s.UserID, s.Key().String())] = s
	return s, nil
}

func (m *memStore) GetDaily(_ context.Context, userID int64, date core.Date) (core.DailySummary, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.daily[key(userID, date.String())]
	return s, ok, nil
}

func (m *memStore) GetWeekly(_ context.Context, userID int64, start core.Date) (core.WeeklySummary, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.weekly[key(userID, start.String())]
	return s, ok, nil
}

func (m *memStore) GetMonthly(_ context.Context, userID int64, k core.MonthKey) (core.MonthlySummary, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.monthly[key(userID, k.String())]
	return s, ok, nil
}

func (m *memStore) ListDaily(_ context.Context, userID int64) ([]core.DailySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.DailySummary
	for _, s := range m.daily {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (m *memStore) ListWeekly(_ context.Context, userID int64) ([]core.WeeklySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.WeeklySummary
	for _, s := range m.weekly {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate.Time) })
	return out, nil
}

func (m *memStore) ListMonthly(_ context.Context, userID int64) ([]core.MonthlySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.MonthlySummary
	for _, s := range m.monthly {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out, nil
}

// recordingPublisher captures published recompute requests.
type recordingPublisher struct {
	mu       sync.Mutex
	requests []publishedRecompute
	err      error
}

type publishedRecompute struct {
	userID        int64
	date          core.Date
	granularities []core.Granularity
}

func (p *recordingPublisher) PublishRecompute(_ context.Context, userID int64, date core.Date, gs []core.Granularity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.requests = append(p.requests, publishedRecompute{userID: userID, date: date, granularities: gs})
	return nil
}

// memUsers is an in-memory UserDirectory.
type memUsers struct {
	users []core.User
}

func (u *memUsers) GetUser(_ context.Context, id int64) (core.User, error) {
	for _, user := range u.users {
		if user.ID == id {
			return user, nil
		}
	}
	return core.User{}, core.ErrUserNotFound
}

func (u *memUsers) ListUsers(_ context.Context) ([]core.User, error) {
	return u.users, nil
}

// failingExporter rejects exports for the named users.
type failingExporter struct {
	fail map[string]bool
	got  map[string]int
}

func (e *failingExporter) ExportMonthly(_ context.Context, username string, rows []core.MonthlySummary) (int, error) {
	if e.fail[username] {
		return 0, fmt.Errorf("sheet for %s is locked", username)
	}
	if e.got == nil {
		e.got = map[string]int{}
	}
	e.got[username] = len(rows)
	return len(rows), nil
}
