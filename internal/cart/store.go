package cart

import "context"

// Store contracts for the collaborators the core depends on. Absent rows
// surface as the sentinel errors in errors.go, never as (zero, nil).

type UserStore interface {
	FindUserByID(ctx context.Context, id string) (User, error)
}

type ProductStore interface {
	FindProductByCode(ctx context.Context, code string) (Product, error)
	FindProductByID(ctx context.Context, id string) (Product, error)
}

type DiscountStore interface {
	FindDiscountByCategory(ctx context.Context, category string) (Discount, error)
}

type CartStore interface {
	FindCartByID(ctx context.Context, id string) (Cart, error)
	FindCartByIDAndStatus(ctx context.Context, id string, status Status) (Cart, error)
	SaveCart(ctx context.Context, c Cart) (Cart, error)
	FindCartsByUser(ctx context.Context, userID string) ([]Cart, error)
}

type ItemStore interface {
	FindItemByCartAndProduct(ctx context.Context, cartID, productID string) (CartItem, error)
	// FindItemsByCart returns items in stable item-id order.
	FindItemsByCart(ctx context.Context, cartID string) ([]CartItem, error)
	SaveItem(ctx context.Context, it CartItem) (CartItem, error)
	DeleteItem(ctx context.Context, it CartItem) error
}

// Store bundles the five collaborator contracts for wiring convenience.
type Store interface {
	UserStore
	ProductStore
	DiscountStore
	CartStore
	ItemStore
}
