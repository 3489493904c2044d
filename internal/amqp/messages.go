package amqp

import (
	"encoding/json"
	"time"

	"lana/internal/core"

	"github.com/google/uuid"
)

const (
	TypeTransactionPosted = "transaction.posted"
	TypeNotification      = "notification"
)

// TransactionPostedMessage announces a committed ledger transaction.
// Amount is a decimal string so no precision is lost on the wire.
type TransactionPostedMessage struct {
	EventID       string    `json:"event_id"`
	TransactionID int64     `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	CategoryID    *int64    `json:"category_id,omitempty"`
	Description   string    `json:"description"`
	OccurredAt    time.Time `json:"occurred_at"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionPostedMessage(t core.Transaction) *TransactionPostedMessage {
	return &TransactionPostedMessage{
		EventID:       uuid.NewString(),
		TransactionID: t.ID,
		UserID:        t.UserID,
		Kind:          string(t.Kind),
		Amount:        t.Amount.StringFixed(2),
		CategoryID:    t.CategoryID,
		Description:   t.Description,
		OccurredAt:    t.OccurredAt,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionPostedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionPostedMessageFromJSON(data []byte) (*TransactionPostedMessage, error) {
	var msg TransactionPostedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NotificationMessage mirrors a user notification onto the bus.
type NotificationMessage struct {
	EventID   string    `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNotificationMessage(userID int64, subject, message string) *NotificationMessage {
	return &NotificationMessage{
		EventID:   uuid.NewString(),
		UserID:    userID,
		Subject:   subject,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
