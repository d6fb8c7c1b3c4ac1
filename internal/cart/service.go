package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service implements the synchronous cart operations. Every mutation of an
// existing cart runs under that cart's registry lock; reads do not lock and
// may observe a cart mid-mutation (accepted trade-off for read throughput).
type Service struct {
	store Store
	locks *LockRegistry
	log   *slog.Logger
}

func NewService(store Store, locks *LockRegistry, log *slog.Logger) *Service {
	return &Service{store: store, locks: locks, log: log}
}

// CreateCart opens a new active cart for the user. No lock is taken: the
// cart id is fresh, nobody can contend on it yet.
func (s *Service) CreateCart(ctx context.Context, userID string) (Cart, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		s.log.Warn("create cart: user lookup failed", "user_id", userID, "err", err)
		return Cart{}, err
	}

	c := Cart{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	c, err = s.store.SaveCart(ctx, c)
	if err != nil {
		return Cart{}, fmt.Errorf("save cart: %w", err)
	}
	s.log.Info("cart created", "cart_id", c.ID, "user_id", userID)
	return c, nil
}

// AddItem puts quantity units of the product into the cart. If the product
// is already present the quantities merge into the existing item; a cart
// never holds two items for the same product.
func (s *Service) AddItem(ctx context.Context, cartID, productCode string, quantity int) (CartItem, error) {
	if quantity < 1 {
		return CartItem{}, ErrInvalidQuantity
	}

	l := s.locks.Acquire(cartID)
	defer s.locks.Release(l)

	c, err := s.activeCart(ctx, cartID)
	if err != nil {
		return CartItem{}, err
	}

	p, err := s.store.FindProductByCode(ctx, productCode)
	if err != nil {
		s.log.Warn("add item: product lookup failed", "cart_id", cartID, "product_code", productCode, "err", err)
		return CartItem{}, err
	}

	it, err := s.store.FindItemByCartAndProduct(ctx, c.ID, p.ID)
	switch {
	case err == nil:
		it.Quantity += quantity
		s.log.Info("item quantity merged", "cart_id", cartID, "product_code", productCode, "quantity", it.Quantity)
	case errors.Is(err, ErrItemNotInCart):
		it = CartItem{
			ID:        uuid.NewString(),
			CartID:    c.ID,
			ProductID: p.ID,
			Quantity:  quantity,
		}
		s.log.Info("item added", "cart_id", cartID, "product_code", productCode, "quantity", quantity)
	default:
		return CartItem{}, fmt.Errorf("find item: %w", err)
	}

	return s.store.SaveItem(ctx, it)
}

// RemoveItem deletes the product's item from the cart entirely; quantities
// are never decremented to zero.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID string) error {
	l := s.locks.Acquire(cartID)
	defer s.locks.Release(l)

	c, err := s.activeCart(ctx, cartID)
	if err != nil {
		return err
	}

	p, err := s.store.FindProductByID(ctx, productID)
	if err != nil {
		s.log.Warn("remove item: product lookup failed", "cart_id", cartID, "product_id", productID, "err", err)
		return err
	}

	it, err := s.store.FindItemByCartAndProduct(ctx, c.ID, p.ID)
	if err != nil {
		s.log.Warn("remove item: not in cart", "cart_id", cartID, "product_id", productID)
		return err
	}

	if err := s.store.DeleteItem(ctx, it); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	s.log.Info("item removed", "cart_id", cartID, "product_id", productID)
	return nil
}

// ListItems returns the cart's items regardless of status; processed carts
// stay listable. No lock is taken.
func (s *Service) ListItems(ctx context.Context, cartID string) ([]CartItem, error) {
	c, err := s.store.FindCartByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.store.FindItemsByCart(ctx, c.ID)
}

// FindCart reads a single cart without locking, whatever its status.
func (s *Service) FindCart(ctx context.Context, cartID string) (Cart, error) {
	return s.store.FindCartByID(ctx, cartID)
}

func (s *Service) ListCartsByUser(ctx context.Context, userID string) ([]Cart, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.FindCartsByUser(ctx, user.ID)
}

func (s *Service) activeCart(ctx context.Context, cartID string) (Cart, error) {
	c, err := s.store.FindCartByIDAndStatus(ctx, cartID, StatusActive)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, ErrCartNotFound) {
		// Distinguish "no such cart" from "exists but already processed".
		if _, err2 := s.store.FindCartByID(ctx, cartID); err2 == nil {
			s.log.Warn("cart already processed", "cart_id", cartID)
			return Cart{}, ErrCartNotActive
		}
		s.log.Warn("cart not found", "cart_id", cartID)
		return Cart{}, ErrCartNotFound
	}
	return Cart{}, err
}
