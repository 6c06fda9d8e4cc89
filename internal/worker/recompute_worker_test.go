package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"oshikatsu/internal/amqp"
	"oshikatsu/internal/core"
	"oshikatsu/internal/services"
)

type fakeRecomputer struct {
	err   error
	calls []core.Granularity
	date  core.Date
}

func (f *fakeRecomputer) RecomputeGranularities(_ context.Context, userID int64, date core.Date, gs []core.Granularity) ([]services.RecomputeResult, error) {
	f.calls = append(f.calls, gs...)
	f.date = date
	if f.err != nil {
		return nil, f.err
	}
	out := make([]services.RecomputeResult, len(gs))
	for i, g := range gs {
		out[i] = services.RecomputeResult{Granularity: g, UserID: userID, Start: date, End: date}
	}
	return out, nil
}

func TestHandleRecomputeMessage(t *testing.T) {
	tests := []struct {
		name         string
		msg          *amqp.RecomputeMessage
		recomputeErr error
		wantErr      bool
		wantDiscard  bool
	}{
		{
			name: "success",
			msg:  amqp.NewRecomputeMessage(1, core.NewDate(2025, 12, 28), nil),
		},
		{
			name:         "unknown user is discarded",
			msg:          amqp.NewRecomputeMessage(9, core.NewDate(2025, 12, 28), nil),
			recomputeErr: fmt.Errorf("daily: %w", core.ErrUserNotFound),
			wantErr:      true,
			wantDiscard:  true,
		},
		{
			name:         "lock contention is requeued",
			msg:          amqp.NewRecomputeMessage(1, core.NewDate(2025, 12, 28), nil),
			recomputeErr: errors.New("summary upsert conflict"),
			wantErr:      true,
		},
		{
			name:        "bad date is discarded",
			msg:         &amqp.RecomputeMessage{UserID: 1, Date: "2025-13-01", Granularities: core.Granularities},
			wantErr:     true,
			wantDiscard: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecomputer{err: tt.recomputeErr}
			w := NewRecomputeWorker(rec)

			err := w.HandleRecomputeMessage(context.Background(), tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleRecomputeMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, amqp.ErrDiscard); got != tt.wantDiscard {
				t.Fatalf("discard = %v, want %v (err %v)", got, tt.wantDiscard, err)
			}
		})
	}
}

func TestHandleRecomputeMessage_PassesGranularities(t *testing.T) {
	rec := &fakeRecomputer{}
	w := NewRecomputeWorker(rec)
	msg := amqp.NewRecomputeMessage(1, core.NewDate(2024, 2, 29), []core.Granularity{core.Monthly})

	if err := w.HandleRecomputeMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != core.Monthly {
		t.Fatalf("expected monthly only, got %v", rec.calls)
	}
	if rec.date.String() != "2024-02-29" {
		t.Fatalf("unexpected date %s", rec.date)
	}
}
