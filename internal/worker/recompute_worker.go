package worker

import (
	"context"
	"errors"
	"fmt"

	"oshikatsu/internal/amqp"
	"oshikatsu/internal/core"
	"oshikatsu/internal/log"
	"oshikatsu/internal/services"
)

// recomputer is the part of services.Aggregator the worker needs.
type recomputer interface {
	RecomputeGranularities(ctx context.Context, userID int64, date core.Date, gs []core.Granularity) ([]services.RecomputeResult, error)
}

// RecomputeWorker turns queued recompute requests into aggregator calls.
type RecomputeWorker struct {
	aggregator recomputer
	logger     *log.Logger
}

func NewRecomputeWorker(aggregator recomputer) *RecomputeWorker {
	return &RecomputeWorker{
		aggregator: aggregator,
		logger:     log.ForComponent(log.ComponentWorker),
	}
}

// HandleRecomputeMessage recomputes the requested buckets. Requests that can
// never succeed are wrapped in amqp.ErrDiscard so they are not requeued.
func (w *RecomputeWorker) HandleRecomputeMessage(ctx context.Context, msg *amqp.RecomputeMessage) error {
	date, err := msg.BucketDate()
	if err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
	}

	results, err := w.aggregator.RecomputeGranularities(ctx, msg.UserID, date, msg.Granularities)
	if err != nil {
		if isPermanent(err) {
			return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
		}
		return fmt.Errorf("recompute %s for user %d: %w", msg.Date, msg.UserID, err)
	}

	w.logger.InfoContext(ctx, "Recompute message applied",
		log.FieldMessageID, msg.ID.String(),
		log.FieldUserID, msg.UserID,
		"date", msg.Date,
		"buckets", len(results))
	return nil
}

// isPermanent reports errors that retrying the same message cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, core.ErrUserNotFound) ||
		errors.Is(err, core.ErrInvalidBucket) ||
		errors.Is(err, core.ErrInvalidDate)
}
