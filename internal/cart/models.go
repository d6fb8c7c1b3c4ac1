package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID       string
	Username string
}

type Product struct {
	ID       string
	Code     string // unique, e.g. "PROD001"
	Name     string
	Price    decimal.Decimal
	Category string
}

// Discount is a category-wide percentage markdown (0-100).
type Discount struct {
	Category   string
	Percentage decimal.Decimal
}

type Cart struct {
	ID         string
	UserID     string
	Status     Status
	Total      decimal.Decimal // set once processing succeeds
	ProcessErr string          // last async processing failure, empty otherwise
	CreatedAt  time.Time
}

type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
}
