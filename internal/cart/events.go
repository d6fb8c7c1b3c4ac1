package cart

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventCartProcessed     = "CartProcessed"
	EventCartProcessFailed = "CartProcessFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "cart-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // cart_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload types ----

type ProcessedLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"` // discount already applied
}

type CartProcessedPayload struct {
	CartID string          `json:"cart_id"`
	UserID string          `json:"user_id"`
	Lines  []ProcessedLine `json:"lines,omitempty"`
	Total  decimal.Decimal `json:"total"`
}

type CartProcessFailedPayload struct {
	CartID string `json:"cart_id"`
	Reason string `json:"reason"`
}
