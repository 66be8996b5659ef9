package amqp

import (
	"encoding/json"
	"time"
)

// Event names carried in ledger messages.
const (
	EventTransactionRecorded = "transaction_recorded"
	EventTransactionRemoved  = "transaction_removed"
	EventOccurrencesCaughtUp = "occurrences_caught_up"
)

// LedgerEventMessage notifies downstream consumers that the ledger
// changed. It carries identifiers only; consumers fetch details from
// the store if they need them.
type LedgerEventMessage struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id,omitempty"`
	TemplateID    string    `json:"template_id,omitempty"`
	Count         int       `json:"count,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates a message stamped with the current time.
func NewLedgerEventMessage(event string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Event:     event,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
