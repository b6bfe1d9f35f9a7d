package audit

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	EventPosting    = "POSTING"
	EventWithdrawal = "WITHDRAWAL"
	EventReward     = "REWARD"
	EventOverride   = "BALANCE_OVERRIDE"
	EventReconcile  = "RECONCILE"
	EventError      = "ERROR"
)

// Event is one line of the ledger audit trail.
type Event struct {
	Timestamp time.Time
	EventType string
	Reference string
	StudentID int64
	ActorID   *int64
	Amount    string
	Status    string
	Details   map[string]string
}

// Logger writes audit events as structured log lines on a dedicated "audit"
// logger so they can be shipped separately from application logs.
type Logger struct {
	logger *zap.Logger
}

func NewLogger(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{logger: base.Named("audit")}
}

func (a *Logger) LogPosting(reference string, studentID int64, actorID *int64, direction string, amount, balanceAfter decimal.Decimal, kind string) {
	a.log(Event{
		Timestamp: time.Now().UTC(),
		EventType: EventPosting,
		Reference: reference,
		StudentID: studentID,
		ActorID:   actorID,
		Amount:    amount.StringFixed(2),
		Status:    "SUCCESS",
		Details: map[string]string{
			"direction":     direction,
			"kind":          kind,
			"balance_after": balanceAfter.StringFixed(2),
		},
	})
}

func (a *Logger) LogWithdrawal(requestID int64, studentID int64, actorID *int64, amount decimal.Decimal, status string, details map[string]string) {
	a.log(Event{
		Timestamp: time.Now().UTC(),
		EventType: EventWithdrawal,
		Reference: "WDR-" + strconv.FormatInt(requestID, 10),
		StudentID: studentID,
		ActorID:   actorID,
		Amount:    amount.StringFixed(2),
		Status:    status,
		Details:   details,
	})
}

func (a *Logger) LogOperation(eventType, reference string, studentID int64, actorID *int64, details map[string]string) {
	a.log(Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Reference: reference,
		StudentID: studentID,
		ActorID:   actorID,
		Status:    "SUCCESS",
		Details:   details,
	})
}

func (a *Logger) LogError(operation string, studentID int64, err error) {
	a.log(Event{
		Timestamp: time.Now().UTC(),
		EventType: EventError,
		StudentID: studentID,
		Status:    "FAILED",
		Details: map[string]string{
			"operation": operation,
			"error":     err.Error(),
		},
	})
}

func (a *Logger) log(event Event) {
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.Int64("student_id", event.StudentID),
		zap.String("status", event.Status),
	}
	if event.Reference != "" {
		fields = append(fields, zap.String("reference", event.Reference))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.Int64("actor_id", *event.ActorID))
	}
	if event.Amount != "" {
		fields = append(fields, zap.String("amount", event.Amount))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}
	a.logger.Info("AUDIT", fields...)
}
