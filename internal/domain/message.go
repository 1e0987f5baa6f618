package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MessageKind string

const (
	MessageKindFreeReply MessageKind = "free_reply"
	MessageKindPaidReply MessageKind = "paid_reply"
	MessageKindMarketing MessageKind = "marketing"
)

// Conversation is read from the messaging feature; the ledger never writes it.
type Conversation struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	OperatorID string    `json:"operator_id"`
	SiteDomain string    `json:"site_domain"`
	CreatedAt  time.Time `json:"created_at"`
}

type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	OperatorID     string          `json:"operator_id"`
	CustomerID     string          `json:"customer_id"`
	Kind           MessageKind     `json:"kind"`
	Content        string          `json:"content"`
	Price          decimal.Decimal `json:"price"`
	ActivityID     string          `json:"activity_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SentMessage is what the billing hook hands back to the messaging feature.
type SentMessage struct {
	Message  *Message  `json:"message"`
	Activity *Activity `json:"activity"`
}
