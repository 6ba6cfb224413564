package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Variant mirrors one row of the product_variants table.
type Variant struct {
	ID           string
	ProductID    string
	SKU          string
	Price        decimal.Decimal
	ComparePrice *decimal.Decimal
	Stock        int32
}

// OnSale reports whether the variant carries a manual sale price.
func (v Variant) OnSale() bool {
	return v.ComparePrice != nil && v.ComparePrice.GreaterThan(v.Price)
}

// StockRequest asks to reserve qty units of one variant.
type StockRequest struct {
	VariantID string
	Qty       int32
}

// StockShortfall describes a reservation that could not be satisfied.
type StockShortfall struct {
	VariantID string
	Requested int32
	Available int32
}

const variantColumns = `id, product_id, sku, price, compare_price, stock`

// VariantRepo provides variant persistence and stock accounting.
type VariantRepo struct{}

func scanVariant(row interface{ Scan(dest ...any) error }) (Variant, error) {
	var (
		v            Variant
		id, product  pgtype.UUID
		price        pgtype.Numeric
		comparePrice pgtype.Numeric
	)
	if err := row.Scan(&id, &product, &v.SKU, &price, &comparePrice, &v.Stock); err != nil {
		return Variant{}, err
	}
	v.ID = uuidString(id)
	v.ProductID = uuidString(product)
	v.Price = numericToDecimal(price)
	v.ComparePrice = numericToDecimalPtr(comparePrice)
	return v, nil
}

// GetByID fetches one variant.
func (VariantRepo) GetByID(ctx context.Context, db DB, variantID string) (Variant, error) {
	id, err := pgUUID(variantID)
	if err != nil {
		return Variant{}, err
	}
	row := db.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = $1`, id)
	return scanVariant(row)
}

// GetByIDs fetches the given variants keyed by id.
func (VariantRepo) GetByIDs(ctx context.Context, db DB, variantIDs []string) (map[string]Variant, error) {
	ids, err := uuidSlice(variantIDs)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]Variant, len(variantIDs))
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}

// ByProduct lists the variants of one product ordered by sku.
func (VariantRepo) ByProduct(ctx context.Context, db DB, productID string) ([]Variant, error) {
	id, err := pgUUID(productID)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE product_id = $1 ORDER BY sku ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Reserve locks each requested variant row and decrements its stock. Every
// shortfall is collected rather than failing on the first one so the caller
// can report the complete list; a non-empty return means the surrounding
// transaction must be rolled back. Requests are processed in id order to
// avoid lock inversion between concurrent checkouts.
func (VariantRepo) Reserve(ctx context.Context, db DB, reqs []StockRequest) ([]StockShortfall, error) {
	sorted := make([]StockRequest, len(reqs))
	copy(sorted, reqs)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].VariantID < sorted[j-1].VariantID; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	var short []StockShortfall
	for _, req := range sorted {
		id, err := pgUUID(req.VariantID)
		if err != nil {
			return nil, err
		}
		var available int32
		if err := db.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id = $1 FOR UPDATE`, id).Scan(&available); err != nil {
			return nil, fmt.Errorf("lock variant %s: %w", req.VariantID, err)
		}
		if available < req.Qty {
			short = append(short, StockShortfall{VariantID: req.VariantID, Requested: req.Qty, Available: available})
			continue
		}
		if _, err := db.Exec(ctx, `UPDATE product_variants SET stock = stock - $2 WHERE id = $1`, id, req.Qty); err != nil {
			return nil, fmt.Errorf("reserve variant %s: %w", req.VariantID, err)
		}
	}
	return short, nil
}

// Restore adds reserved quantities back, used on cancel and payment failure.
func (VariantRepo) Restore(ctx context.Context, db DB, reqs []StockRequest) error {
	for _, req := range reqs {
		id, err := pgUUID(req.VariantID)
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, `UPDATE product_variants SET stock = stock + $2 WHERE id = $1`, id, req.Qty); err != nil {
			return fmt.Errorf("restore variant %s: %w", req.VariantID, err)
		}
	}
	return nil
}
