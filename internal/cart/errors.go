package cart

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrCartNotFound    = errors.New("cart not found")
	ErrProductNotFound = errors.New("product not found")
	ErrItemNotInCart   = errors.New("product not in cart")

	// ErrDiscountNotFound is internal: an absent discount just means full price.
	ErrDiscountNotFound = errors.New("no discount for category")

	// ErrCartNotActive means the cart exists but has already been processed.
	ErrCartNotActive = errors.New("cart not active")

	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)
