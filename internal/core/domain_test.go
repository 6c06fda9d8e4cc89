package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("round trip: got %s", d)
	}

	for _, in := range []string{"2023-02-29", "2025-13-01", "yesterday", ""} {
		if _, err := ParseDate(in); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", in, err)
		}
	}
}

func TestParseTimePeriod(t *testing.T) {
	cases := []struct {
		in   string
		want TimePeriod
		ok   bool
	}{
		{"morning", Morning, true},
		{" Noon ", Noon, true},
		{"night", Night, true},
		{"朝", Morning, true},
		{"昼", Noon, true},
		{"晩", Night, true},
		{"evening", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseTimePeriod(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
		} else if !errors.Is(err, ErrInvalidTimePeriod) {
			t.Fatalf("%q expected ErrInvalidTimePeriod, got %v", tc.in, err)
		}
	}
}

func TestAmountsTotalAndAdd(t *testing.T) {
	a := Amounts{Drink: 150, Snack: 0, Main: 1200, Irregular: 0}
	if a.Total() != 1350 {
		t.Fatalf("expected 1350, got %d", a.Total())
	}
	b := a.Add(Amounts{Drink: 1, Snack: 2, Main: 3, Irregular: 4})
	want := Amounts{Drink: 151, Snack: 2, Main: 1203, Irregular: 4}
	if b != want {
		t.Fatalf("expected %+v, got %+v", want, b)
	}
	if b.Total() != b.Drink+b.Snack+b.Main+b.Irregular {
		t.Fatalf("total is not the exact category sum")
	}
}

func TestPurchaseRecordValidate(t *testing.T) {
	good := PurchaseRecord{
		UserID:     1,
		Date:       NewDate(2025, 1, 1),
		TimePeriod: Morning,
		Amounts:    Amounts{Drink: 100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zeroAmounts := good
	zeroAmounts.Amounts = Amounts{}
	if err := zeroAmounts.Validate(); err != nil {
		t.Fatalf("all-zero amounts should be accepted, got %v", err)
	}

	bads := []PurchaseRecord{
		{UserID: 0, Date: NewDate(2025, 1, 1), TimePeriod: Morning},
		{UserID: 1, Date: Date{}, TimePeriod: Morning},
		{UserID: 1, Date: NewDate(2025, 1, 1), TimePeriod: "evening"},
		{UserID: 1, Date: NewDate(2025, 1, 1), TimePeriod: Noon, Amounts: Amounts{Snack: -1}},
		{UserID: 1, Date: NewDate(2025, 1, 1), TimePeriod: Night, Memo: strings.Repeat("あ", 201)},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
