package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const DefaultChannel = "wallet_events"

type EventType string

const (
	WalletCredited      EventType = "wallet.credited"
	WalletDebited       EventType = "wallet.debited"
	WithdrawalRequested EventType = "withdrawal.requested"
	WithdrawalApproved  EventType = "withdrawal.approved"
	WithdrawalRejected  EventType = "withdrawal.rejected"
	RewardGranted       EventType = "reward.granted"
)

// Event is what downstream consumers (notifications, analytics) receive after
// a ledger change has been committed. Amounts are fixed 2dp strings.
type Event struct {
	ID           string            `json:"id"`
	Type         EventType         `json:"type"`
	StudentID    int64             `json:"student_id"`
	Amount       string            `json:"amount,omitempty"`
	BalanceAfter string            `json:"balance_after,omitempty"`
	Reference    string            `json:"reference,omitempty"`
	WithdrawalID int64             `json:"withdrawal_id,omitempty"`
	ActorID      *int64            `json:"actor_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

func NewEvent(eventType EventType, studentID int64) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		StudentID: studentID,
		Timestamp: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }
func (NopPublisher) Close() error                          { return nil }
