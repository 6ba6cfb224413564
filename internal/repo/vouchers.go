package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Voucher mirrors one row of the vouchers table.
type Voucher struct {
	ID               string
	Code             string
	Name             string
	Description      string
	Kind             string
	Value            decimal.Decimal
	MaxDiscount      *decimal.Decimal
	MinPurchase      decimal.Decimal
	FirstTimeOnly    bool
	ExcludeSaleItems bool
	ProductIDs       []string
	CategoryIDs      []string
	MaxUses          *int32
	MaxUsesPerUser   int32
	CurrentUses      int32
	UserID           string
	IsActive         bool
	StartsAt         time.Time
	EndsAt           time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// VoucherUsage is one redemption record.
type VoucherUsage struct {
	ID        string
	VoucherID string
	UserID    string
	OrderID   string
	Amount    decimal.Decimal
	UsedAt    time.Time
}

const voucherColumns = `id, code, name, description, kind, value, max_discount,
	min_purchase, first_time_only, exclude_sale_items, product_ids, category_ids,
	max_uses, max_uses_per_user, current_uses, user_id, is_active,
	starts_at, ends_at, created_at, updated_at`

// VoucherRepo provides voucher persistence.
type VoucherRepo struct{}

func scanVoucher(row interface{ Scan(dest ...any) error }) (Voucher, error) {
	var (
		v                  Voucher
		id, userID         pgtype.UUID
		description        pgtype.Text
		value, minPurchase pgtype.Numeric
		maxDiscount        pgtype.Numeric
		maxUses            pgtype.Int4
		productIDs, catIDs []pgtype.UUID
	)
	err := row.Scan(&id, &v.Code, &v.Name, &description, &v.Kind, &value, &maxDiscount,
		&minPurchase, &v.FirstTimeOnly, &v.ExcludeSaleItems, &productIDs, &catIDs,
		&maxUses, &v.MaxUsesPerUser, &v.CurrentUses, &userID, &v.IsActive,
		&v.StartsAt, &v.EndsAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Voucher{}, err
	}
	v.ID = uuidString(id)
	v.UserID = uuidString(userID)
	v.Description = textToString(description)
	v.Value = numericToDecimal(value)
	v.MaxDiscount = numericToDecimalPtr(maxDiscount)
	v.MinPurchase = numericToDecimal(minPurchase)
	if maxUses.Valid {
		limit := maxUses.Int32
		v.MaxUses = &limit
	}
	for _, p := range productIDs {
		v.ProductIDs = append(v.ProductIDs, uuidString(p))
	}
	for _, c := range catIDs {
		v.CategoryIDs = append(v.CategoryIDs, uuidString(c))
	}
	return v, nil
}

func uuidSlice(values []string) ([]pgtype.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]pgtype.UUID, 0, len(values))
	for _, value := range values {
		id, err := pgUUID(value)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// Create inserts a voucher and returns the stored row.
func (VoucherRepo) Create(ctx context.Context, db DB, v Voucher) (Voucher, error) {
	userID, err := uuidOrNil(v.UserID)
	if err != nil {
		return Voucher{}, err
	}
	productIDs, err := uuidSlice(v.ProductIDs)
	if err != nil {
		return Voucher{}, err
	}
	categoryIDs, err := uuidSlice(v.CategoryIDs)
	if err != nil {
		return Voucher{}, err
	}
	var maxUses pgtype.Int4
	if v.MaxUses != nil {
		maxUses = pgtype.Int4{Int32: *v.MaxUses, Valid: true}
	}
	row := db.QueryRow(ctx, `INSERT INTO vouchers
		(code, name, description, kind, value, max_discount, min_purchase,
		 first_time_only, exclude_sale_items, product_ids, category_ids,
		 max_uses, max_uses_per_user, user_id, is_active, starts_at, ends_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING `+voucherColumns,
		v.Code, v.Name, textOrNil(v.Description), v.Kind,
		decimalToNumeric(v.Value), decimalPtrToNumeric(v.MaxDiscount), decimalToNumeric(v.MinPurchase),
		v.FirstTimeOnly, v.ExcludeSaleItems, productIDs, categoryIDs,
		maxUses, v.MaxUsesPerUser, userID, v.IsActive, v.StartsAt, v.EndsAt)
	return scanVoucher(row)
}

// Update rewrites the mutable voucher fields.
func (VoucherRepo) Update(ctx context.Context, db DB, v Voucher) (Voucher, error) {
	id, err := pgUUID(v.ID)
	if err != nil {
		return Voucher{}, err
	}
	productIDs, err := uuidSlice(v.ProductIDs)
	if err != nil {
		return Voucher{}, err
	}
	categoryIDs, err := uuidSlice(v.CategoryIDs)
	if err != nil {
		return Voucher{}, err
	}
	var maxUses pgtype.Int4
	if v.MaxUses != nil {
		maxUses = pgtype.Int4{Int32: *v.MaxUses, Valid: true}
	}
	row := db.QueryRow(ctx, `UPDATE vouchers SET
		name = $2, description = $3, value = $4, max_discount = $5,
		min_purchase = $6, first_time_only = $7, exclude_sale_items = $8,
		product_ids = $9, category_ids = $10, max_uses = $11,
		max_uses_per_user = $12, is_active = $13, starts_at = $14, ends_at = $15,
		updated_at = now()
		WHERE id = $1
		RETURNING `+voucherColumns,
		id, v.Name, textOrNil(v.Description),
		decimalToNumeric(v.Value), decimalPtrToNumeric(v.MaxDiscount), decimalToNumeric(v.MinPurchase),
		v.FirstTimeOnly, v.ExcludeSaleItems, productIDs, categoryIDs,
		maxUses, v.MaxUsesPerUser, v.IsActive, v.StartsAt, v.EndsAt)
	return scanVoucher(row)
}

// Deactivate flips is_active off without deleting history.
func (VoucherRepo) Deactivate(ctx context.Context, db DB, voucherID string) error {
	id, err := pgUUID(voucherID)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `UPDATE vouchers SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("voucher %s: %w", voucherID, pgx.ErrNoRows)
	}
	return nil
}

// GetByCode fetches a voucher by its normalized code.
func (VoucherRepo) GetByCode(ctx context.Context, db DB, code string) (Voucher, error) {
	row := db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code)
	return scanVoucher(row)
}

// GetByID fetches a voucher by id.
func (VoucherRepo) GetByID(ctx context.Context, db DB, voucherID string) (Voucher, error) {
	id, err := pgUUID(voucherID)
	if err != nil {
		return Voucher{}, err
	}
	row := db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, id)
	return scanVoucher(row)
}

// List returns vouchers ordered by creation time, newest first.
func (VoucherRepo) List(ctx context.Context, db DB, limit, offset int) ([]Voucher, error) {
	rows, err := db.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Count returns the total number of vouchers.
func (VoucherRepo) Count(ctx context.Context, db DB) (int64, error) {
	var total int64
	err := db.QueryRow(ctx, `SELECT count(*) FROM vouchers`).Scan(&total)
	return total, err
}

// CountUsagesByUser counts prior redemptions of a voucher by one user.
func (VoucherRepo) CountUsagesByUser(ctx context.Context, db DB, voucherID, userID string) (int64, error) {
	vid, err := pgUUID(voucherID)
	if err != nil {
		return 0, err
	}
	uid, err := pgUUID(userID)
	if err != nil {
		return 0, err
	}
	var count int64
	err = db.QueryRow(ctx, `SELECT count(*) FROM voucher_usages WHERE voucher_id = $1 AND user_id = $2`, vid, uid).Scan(&count)
	return count, err
}

// ClaimUsage atomically claims one usage slot of the voucher for an order.
// The voucher row is locked, the counter is bumped only while below the
// global cap, and the usage row insert is guarded by the unique
// (voucher_id, order_id) constraint. Returns false when the cap is exhausted.
func (VoucherRepo) ClaimUsage(ctx context.Context, db DB, voucherID, userID, orderID string, amount decimal.Decimal) (bool, error) {
	vid, err := pgUUID(voucherID)
	if err != nil {
		return false, err
	}
	uid, err := pgUUID(userID)
	if err != nil {
		return false, err
	}
	oid, err := uuidOrNil(orderID)
	if err != nil {
		return false, err
	}
	if _, err := db.Exec(ctx, `SELECT id FROM vouchers WHERE id = $1 FOR UPDATE`, vid); err != nil {
		return false, err
	}
	tag, err := db.Exec(ctx, `UPDATE vouchers SET current_uses = current_uses + 1, updated_at = now()
		WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)`, vid)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	_, err = db.Exec(ctx, `INSERT INTO voucher_usages (voucher_id, user_id, order_id, amount)
		VALUES ($1, $2, $3, $4)`, vid, uid, oid, decimalToNumeric(amount))
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByUserPrefix returns the user's vouchers whose code starts with prefix.
// Used by the milestone engine to detect already-earned rewards.
func (VoucherRepo) ListByUserPrefix(ctx context.Context, db DB, userID, prefix string) ([]Voucher, error) {
	uid, err := pgUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers
		WHERE user_id = $1 AND code LIKE $2 || '%'`, uid, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
