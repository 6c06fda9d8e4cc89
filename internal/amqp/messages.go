package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"oshikatsu/internal/core"
)

// RecomputeMessage asks a worker to recompute the buckets containing Date.
// It carries no totals; the worker reads the ledger itself.
type RecomputeMessage struct {
	ID            uuid.UUID          `json:"id"`
	UserID        int64              `json:"user_id"`
	Date          string             `json:"date"`
	Granularities []core.Granularity `json:"granularities"`
	Timestamp     time.Time          `json:"timestamp"`
}

// NewRecomputeMessage creates a message with a fresh id. An empty
// granularity list means all three.
func NewRecomputeMessage(userID int64, date core.Date, gs []core.Granularity) *RecomputeMessage {
	if len(gs) == 0 {
		gs = core.Granularities
	}
	return &RecomputeMessage{
		ID:            uuid.New(),
		UserID:        userID,
		Date:          date.String(),
		Granularities: append([]core.Granularity(nil), gs...),
		Timestamp:     time.Now().UTC(),
	}
}

func (m *RecomputeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecomputeMessageFromJSON decodes and validates a message body.
func RecomputeMessageFromJSON(data []byte) (*RecomputeMessage, error) {
	var msg RecomputeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// BucketDate parses the message date.
func (m *RecomputeMessage) BucketDate() (core.Date, error) {
	return core.ParseDate(m.Date)
}

func (m *RecomputeMessage) Validate() error {
	if m.UserID <= 0 {
		return fmt.Errorf("invalid user id %d", m.UserID)
	}
	if _, err := m.BucketDate(); err != nil {
		return err
	}
	if len(m.Granularities) == 0 {
		return fmt.Errorf("no granularities requested")
	}
	for _, g := range m.Granularities {
		if _, err := core.ParseGranularity(string(g)); err != nil {
			return err
		}
	}
	return nil
}
