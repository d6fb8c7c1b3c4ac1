package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres Store. One aggregate per statement; no cross-cart
// transactions are needed by the core.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) FindUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `SELECT id, username FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *Repo) FindProductByCode(ctx context.Context, code string) (Product, error) {
	return r.findProduct(ctx, `SELECT id, code, name, price, category FROM products WHERE code=$1`, code)
}

func (r *Repo) FindProductByID(ctx context.Context, id string) (Product, error) {
	return r.findProduct(ctx, `SELECT id, code, name, price, category FROM products WHERE id=$1`, id)
}

func (r *Repo) findProduct(ctx context.Context, q, arg string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, q, arg).Scan(&p.ID, &p.Code, &p.Name, &p.Price, &p.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("find product: %w", err)
	}
	return p, nil
}

func (r *Repo) FindDiscountByCategory(ctx context.Context, category string) (Discount, error) {
	var d Discount
	err := r.DB.QueryRow(ctx,
		`SELECT category, percentage FROM discounts WHERE category=$1`, category).
		Scan(&d.Category, &d.Percentage)
	if errors.Is(err, pgx.ErrNoRows) {
		return Discount{}, ErrDiscountNotFound
	}
	if err != nil {
		return Discount{}, fmt.Errorf("find discount: %w", err)
	}
	return d, nil
}

func (r *Repo) FindCartByID(ctx context.Context, id string) (Cart, error) {
	return r.findCart(ctx,
		`SELECT id, user_id, status, total, process_err, created_at FROM carts WHERE id=$1`, id)
}

func (r *Repo) FindCartByIDAndStatus(ctx context.Context, id string, status Status) (Cart, error) {
	return r.findCart(ctx,
		`SELECT id, user_id, status, total, process_err, created_at FROM carts WHERE id=$1 AND status=$2`,
		id, string(status))
}

func (r *Repo) findCart(ctx context.Context, q string, args ...any) (Cart, error) {
	var c Cart
	err := r.DB.QueryRow(ctx, q, args...).
		Scan(&c.ID, &c.UserID, &c.Status, &c.Total, &c.ProcessErr, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, ErrCartNotFound
	}
	if err != nil {
		return Cart{}, fmt.Errorf("find cart: %w", err)
	}
	return c, nil
}

func (r *Repo) SaveCart(ctx context.Context, c Cart) (Cart, error) {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO carts(id, user_id, status, total, process_err, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET status=EXCLUDED.status, total=EXCLUDED.total, process_err=EXCLUDED.process_err`,
		c.ID, c.UserID, string(c.Status), c.Total, c.ProcessErr, c.CreatedAt)
	if err != nil {
		return Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}

func (r *Repo) FindCartsByUser(ctx context.Context, userID string) ([]Cart, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, status, total, process_err, created_at
		FROM carts WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	defer rows.Close()

	var out []Cart
	for rows.Next() {
		var c Cart
		if err := rows.Scan(&c.ID, &c.UserID, &c.Status, &c.Total, &c.ProcessErr, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) FindItemByCartAndProduct(ctx context.Context, cartID, productID string) (CartItem, error) {
	var it CartItem
	err := r.DB.QueryRow(ctx, `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return CartItem{}, ErrItemNotInCart
	}
	if err != nil {
		return CartItem{}, fmt.Errorf("find item: %w", err)
	}
	return it, nil
}

func (r *Repo) FindItemsByCart(ctx context.Context, cartID string) ([]CartItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items WHERE cart_id=$1 ORDER BY id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SaveItem upserts by (cart_id, product_id) so a concurrent duplicate insert
// collapses into a quantity update instead of a second row per product.
func (r *Repo) SaveItem(ctx context.Context, it CartItem) (CartItem, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO cart_items(id, cart_id, product_id, quantity)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity=EXCLUDED.quantity
		RETURNING id`,
		it.ID, it.CartID, it.ProductID, it.Quantity).Scan(&it.ID)
	if err != nil {
		return CartItem{}, fmt.Errorf("save item: %w", err)
	}
	return it, nil
}

func (r *Repo) DeleteItem(ctx context.Context, it CartItem) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, it.ID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrItemNotInCart
	}
	return nil
}
