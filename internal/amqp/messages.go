package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"metas/internal/core"
)

// GoalRecordedMessage announces a stored goal entry. Consumers read the
// aggregates from the store, so the payload carries only what routing and
// logging need.
type GoalRecordedMessage struct {
	MessageID string    `json:"message_id"`
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// NewGoalRecordedMessage creates a message with a fresh id
func NewGoalRecordedMessage(rec core.GoalRecord) *GoalRecordedMessage {
	return &GoalRecordedMessage{
		MessageID: uuid.NewString(),
		ID:        rec.ID,
		Category:  rec.Category,
		Date:      rec.Date.String(),
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *GoalRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordDate parses the entry date carried by the message
func (m *GoalRecordedMessage) RecordDate() (core.Date, error) {
	return core.ParseDate(m.Date)
}

// GoalRecordedMessageFromJSON decodes and sanity-checks a message body
func GoalRecordedMessageFromJSON(data []byte) (*GoalRecordedMessage, error) {
	var msg GoalRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid goal id %d", msg.ID)
	}
	if _, err := msg.RecordDate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
