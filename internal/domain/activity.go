package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ActivityType string

const (
	ActivityTypeMessage             ActivityType = "message"
	ActivityTypePaidOperatorMessage ActivityType = "paid_operator_message"
	ActivityTypeCall                ActivityType = "call"
	ActivityTypeVideo               ActivityType = "video"
	ActivityTypeCam                 ActivityType = "cam"
	ActivityTypeChat                ActivityType = "chat"
	ActivityTypeToyControl          ActivityType = "toy_control"
	ActivityTypeContent             ActivityType = "content"
	ActivityTypeMarketing           ActivityType = "marketing"
)

var AllActivityTypes = []ActivityType{
	ActivityTypeMessage,
	ActivityTypePaidOperatorMessage,
	ActivityTypeCall,
	ActivityTypeVideo,
	ActivityTypeCam,
	ActivityTypeChat,
	ActivityTypeToyControl,
	ActivityTypeContent,
	ActivityTypeMarketing,
}

func (t ActivityType) Valid() bool {
	for _, v := range AllActivityTypes {
		if t == v {
			return true
		}
	}
	return false
}

func ParseActivityType(s string) (ActivityType, error) {
	t := ActivityType(s)
	if !t.Valid() {
		return "", Validationf("unknown activity type %q", s)
	}
	return t, nil
}

// Activity is one billable event. It is never updated after it is written.
type Activity struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	OperatorID       string          `json:"operator_id"`
	SiteDomain       string          `json:"site_domain"`
	Type             ActivityType    `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	OperatorEarnings decimal.Decimal `json:"operator_earnings"`
	Billed           bool            `json:"billed"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// ActivityRequest describes an interaction to bill. Amount is used for types
// priced by duration or quantity; zero means the rate table's fixed price.
type ActivityRequest struct {
	CustomerID string
	OperatorID string
	Type       ActivityType
	SiteDomain string
	Amount     decimal.Decimal
}

// ActivityFilter narrows earnings and spending queries. Empty fields match all.
type ActivityFilter struct {
	CustomerID string
	OperatorID string
	Type       ActivityType
}
