package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Product mirrors one row of the products table.
type Product struct {
	ID         string
	Title      string
	Slug       string
	CategoryID string
	BrandID    string
}

const productColumns = `id, title, slug, category_id, brand_id`

// ProductRepo provides read access to the public product listing.
type ProductRepo struct{}

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var (
		p                   Product
		id, category, brand pgtype.UUID
	)
	if err := row.Scan(&id, &p.Title, &p.Slug, &category, &brand); err != nil {
		return Product{}, err
	}
	p.ID = uuidString(id)
	p.CategoryID = uuidString(category)
	p.BrandID = uuidString(brand)
	return p, nil
}

// Search lists products matching the query ordered by title. An empty query
// matches everything.
func (ProductRepo) Search(ctx context.Context, db DB, query string, limit, offset int32) ([]Product, error) {
	rows, err := db.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE ($1 = '' OR title ILIKE '%' || $1 || '%')
		 ORDER BY title ASC
		 LIMIT $2 OFFSET $3`, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountSearch returns the total number of products matching the query.
func (ProductRepo) CountSearch(ctx context.Context, db DB, query string) (int, error) {
	var total int
	err := db.QueryRow(ctx,
		`SELECT count(*) FROM products
		 WHERE ($1 = '' OR title ILIKE '%' || $1 || '%')`, query).Scan(&total)
	return total, err
}

// GetBySlug fetches one product by its unique slug.
func (ProductRepo) GetBySlug(ctx context.Context, db DB, slug string) (Product, error) {
	row := db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	return scanProduct(row)
}
