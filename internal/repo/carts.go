package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Cart mirrors one row of the carts table.
type Cart struct {
	ID          string
	UserID      string
	AnonID      string
	VoucherCode string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// CartLine is a cart item joined with its variant's live pricing fields.
// Prices are never stored on the item; the pricing engine reads them fresh.
type CartLine struct {
	ID           string
	CartID       string
	ProductID    string
	CategoryID   string
	VariantID    string
	Qty          int32
	Price        decimal.Decimal
	ComparePrice *decimal.Decimal
	Stock        int32
}

const cartColumns = `id, user_id, anon_id, applied_voucher_code, expires_at, created_at`

// CartRepo provides cart persistence.
type CartRepo struct{}

func scanCart(row interface{ Scan(dest ...any) error }) (Cart, error) {
	var (
		c            Cart
		id, userID   pgtype.UUID
		anonID, code pgtype.Text
		expires      pgtype.Timestamptz
	)
	if err := row.Scan(&id, &userID, &anonID, &code, &expires, &c.CreatedAt); err != nil {
		return Cart{}, err
	}
	c.ID = uuidString(id)
	c.UserID = uuidString(userID)
	c.AnonID = textToString(anonID)
	c.VoucherCode = textToString(code)
	c.ExpiresAt = timePtr(expires)
	return c, nil
}

// EnsureForUser returns the user's cart, creating one when absent.
func (CartRepo) EnsureForUser(ctx context.Context, db DB, userID string, ttl time.Duration) (Cart, error) {
	uid, err := pgUUID(userID)
	if err != nil {
		return Cart{}, err
	}
	row := db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, uid)
	cart, err := scanCart(row)
	if err == nil {
		return cart, nil
	}
	if !IsNotFound(err) {
		return Cart{}, err
	}
	row = db.QueryRow(ctx, `INSERT INTO carts (user_id, expires_at) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
		RETURNING `+cartColumns, uid, time.Now().Add(ttl))
	return scanCart(row)
}

// EnsureAnonymous returns the anonymous cart for a session id, creating one
// when absent.
func (CartRepo) EnsureAnonymous(ctx context.Context, db DB, anonID string, ttl time.Duration) (Cart, error) {
	row := db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE anon_id = $1`, anonID)
	cart, err := scanCart(row)
	if err == nil {
		return cart, nil
	}
	if !IsNotFound(err) {
		return Cart{}, err
	}
	row = db.QueryRow(ctx, `INSERT INTO carts (anon_id, expires_at) VALUES ($1, $2)
		ON CONFLICT (anon_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
		RETURNING `+cartColumns, anonID, time.Now().Add(ttl))
	return scanCart(row)
}

// Lines returns the cart's items joined with live variant pricing.
func (CartRepo) Lines(ctx context.Context, db DB, cartID string) ([]CartLine, error) {
	cid, err := pgUUID(cartID)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT ci.id, ci.cart_id, ci.product_id, p.category_id, ci.variant_id, ci.qty,
			v.price, v.compare_price, v.stock
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`, cid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartLine
	for rows.Next() {
		var (
			line                CartLine
			id, cart            pgtype.UUID
			product, category   pgtype.UUID
			variant             pgtype.UUID
			price, comparePrice pgtype.Numeric
		)
		if err := rows.Scan(&id, &cart, &product, &category, &variant, &line.Qty, &price, &comparePrice, &line.Stock); err != nil {
			return nil, err
		}
		line.ID = uuidString(id)
		line.CartID = uuidString(cart)
		line.ProductID = uuidString(product)
		line.CategoryID = uuidString(category)
		line.VariantID = uuidString(variant)
		line.Price = numericToDecimal(price)
		line.ComparePrice = numericToDecimalPtr(comparePrice)
		out = append(out, line)
	}
	return out, rows.Err()
}

// UpsertItem adds qty of a variant, accumulating on the existing line.
func (CartRepo) UpsertItem(ctx context.Context, db DB, cartID, productID, variantID string, qty int32) error {
	cid, err := pgUUID(cartID)
	if err != nil {
		return err
	}
	pid, err := pgUUID(productID)
	if err != nil {
		return err
	}
	vid, err := pgUUID(variantID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO cart_items (cart_id, product_id, variant_id, qty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, variant_id) DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty`,
		cid, pid, vid, qty)
	return err
}

// SetItemQty replaces the quantity of one line.
func (CartRepo) SetItemQty(ctx context.Context, db DB, cartID, variantID string, qty int32) error {
	cid, err := pgUUID(cartID)
	if err != nil {
		return err
	}
	vid, err := pgUUID(variantID)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `UPDATE cart_items SET qty = $3 WHERE cart_id = $1 AND variant_id = $2`, cid, vid, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart item %s: not in cart", variantID)
	}
	return nil
}

// RemoveItem deletes one line from the cart.
func (CartRepo) RemoveItem(ctx context.Context, db DB, cartID, variantID string) error {
	cid, err := pgUUID(cartID)
	if err != nil {
		return err
	}
	vid, err := pgUUID(variantID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND variant_id = $2`, cid, vid)
	return err
}

// Clear removes every line and the applied voucher.
func (CartRepo) Clear(ctx context.Context, db DB, cartID string) error {
	cid, err := pgUUID(cartID)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cid); err != nil {
		return err
	}
	_, err = db.Exec(ctx, `UPDATE carts SET applied_voucher_code = NULL WHERE id = $1`, cid)
	return err
}

// SetVoucher stores the applied voucher code snapshot, empty clears it.
func (CartRepo) SetVoucher(ctx context.Context, db DB, cartID, code string) error {
	cid, err := pgUUID(cartID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `UPDATE carts SET applied_voucher_code = $2 WHERE id = $1`, cid, textOrNil(code))
	return err
}

// Merge moves lines from an anonymous cart into the user's cart, summing
// quantities on collisions, then drops the anonymous cart.
func (CartRepo) Merge(ctx context.Context, db DB, fromCartID, intoCartID string) error {
	from, err := pgUUID(fromCartID)
	if err != nil {
		return err
	}
	into, err := pgUUID(intoCartID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO cart_items (cart_id, product_id, variant_id, qty)
		SELECT $2, product_id, variant_id, qty FROM cart_items WHERE cart_id = $1
		ON CONFLICT (cart_id, variant_id) DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty`, from, into)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, from)
	return err
}
