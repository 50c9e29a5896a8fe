package ledger

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// AuditEvent is one line of the money-movement audit trail, emitted as JSON
// so operators can grep and parse it.
type AuditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	AccountNo     string    `json:"account_no"`
	Amount        string    `json:"amount,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogMutation(kind, accountNo string, amount decimal.Decimal, txID int64) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: kind,
		AccountNo: accountNo,
		Amount:    amount.StringFixed(2),
		Status:    "SUCCESS",
		Details:   map[string]int64{"transaction_id": txID},
	})
}

func (a *AuditLogger) LogTransfer(correlationID, from, to string, amount decimal.Decimal, status string) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "TRANSFER",
		CorrelationID: correlationID,
		AccountNo:     from,
		Amount:        amount.StringFixed(2),
		Status:        status,
		Details:       map[string]string{"to_account": to},
	})
}

func (a *AuditLogger) LogError(correlationID, accountNo string, err error) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		CorrelationID: correlationID,
		AccountNo:     accountNo,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

// LogPartialTransfer flags a ledger left debited without its matching
// credit. Operators must reconcile by hand; nothing downstream retries it.
func (a *AuditLogger) LogPartialTransfer(correlationID, from, to string, amount decimal.Decimal, err error) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "PARTIAL_TRANSFER",
		CorrelationID: correlationID,
		AccountNo:     from,
		Amount:        amount.StringFixed(2),
		Status:        "NEEDS_RECONCILIATION",
		Details: map[string]string{
			"to_account": to,
			"error":      err.Error(),
		},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
