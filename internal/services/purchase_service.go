package services

import (
	"context"
	"errors"
	"fmt"

	"oshikatsu/internal/core"
	"oshikatsu/internal/log"
)

// RecomputeMode selects how RecordPurchase refreshes summaries.
type RecomputeMode string

const (
	// RecomputeSync recomputes the affected buckets before returning.
	RecomputeSync RecomputeMode = "sync"
	// RecomputeQueue publishes one recompute request for a worker.
	RecomputeQueue RecomputeMode = "queue"
)

func ParseRecomputeMode(s string) (RecomputeMode, error) {
	switch m := RecomputeMode(s); m {
	case RecomputeSync, RecomputeQueue:
		return m, nil
	}
	return "", fmt.Errorf("unknown recompute mode %q: must be sync or queue", s)
}

// ErrRecomputeFailed marks a purchase that was stored but whose summaries
// could not be refreshed.
var ErrRecomputeFailed = errors.New("purchase stored but recompute failed")

// PurchaseReceipt reports what RecordPurchase did.
type PurchaseReceipt struct {
	ID      int64
	Queued  bool
	Results []RecomputeResult
}

// PurchaseService appends purchases and then asks for the affected day,
// week and month to be recomputed.
type PurchaseService struct {
	ledger     LedgerWriter
	aggregator *Aggregator
	publisher  RecomputePublisher
	mode       RecomputeMode
	logger     *log.Logger
}

// NewPurchaseService creates the service. publisher may be nil, in which
// case queue mode falls back to synchronous recompute.
func NewPurchaseService(ledger LedgerWriter, aggregator *Aggregator, publisher RecomputePublisher, mode RecomputeMode) *PurchaseService {
	if mode == "" {
		mode = RecomputeSync
	}
	return &PurchaseService{
		ledger:     ledger,
		aggregator: aggregator,
		publisher:  publisher,
		mode:       mode,
		logger:     log.ForComponent(log.ComponentPurchase),
	}
}

// RecordPurchase appends p to the ledger, then refreshes its buckets. The
// purchase is never rolled back: if the refresh fails the receipt still
// carries the new id and the error wraps ErrRecomputeFailed.
func (s *PurchaseService) RecordPurchase(ctx context.Context, p core.PurchaseRecord) (PurchaseReceipt, error) {
	id, err := s.ledger.AppendPurchase(ctx, p)
	if err != nil {
		return PurchaseReceipt{}, fmt.Errorf("append purchase: %w", err)
	}
	receipt := PurchaseReceipt{ID: id}

	if s.mode == RecomputeQueue {
		err := s.publish(ctx, p)
		if err == nil {
			receipt.Queued = true
			return receipt, nil
		}
		s.logger.ErrorContext(ctx, "Failed to publish recompute request, recomputing inline",
			"purchase_id", id,
			log.FieldUserID, p.UserID,
			log.FieldError, err)
	}

	results, err := s.aggregator.RecomputeAll(ctx, p.UserID, p.Date)
	receipt.Results = results
	if err != nil {
		s.logger.ErrorContext(ctx, "Recompute after purchase failed",
			"purchase_id", id,
			log.FieldUserID, p.UserID,
			log.FieldError, err)
		return receipt, fmt.Errorf("%w: %w", ErrRecomputeFailed, err)
	}
	return receipt, nil
}

func (s *PurchaseService) publish(ctx context.Context, p core.PurchaseRecord) error {
	if s.publisher == nil {
		return errors.New("AMQP publisher not available")
	}
	return s.publisher.PublishRecompute(ctx, p.UserID, p.Date, core.Granularities)
}
