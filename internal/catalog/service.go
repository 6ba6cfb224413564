package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/auroramart/backend-mart/internal/pricing"
	"github.com/auroramart/backend-mart/internal/repo"
)

// Data is the storefront read surface the browse service needs.
type Data interface {
	Search(ctx context.Context, query string, limit, offset int32) ([]repo.Product, error)
	CountSearch(ctx context.Context, query string) (int, error)
	ProductBySlug(ctx context.Context, slug string) (repo.Product, error)
	VariantsByProduct(ctx context.Context, productID string) ([]repo.Variant, error)
}

// PGData backs Data with the shared repositories.
type PGData struct {
	Pool     repo.DB
	Products repo.ProductRepo
	Variants repo.VariantRepo
}

func (d *PGData) Search(ctx context.Context, query string, limit, offset int32) ([]repo.Product, error) {
	return d.Products.Search(ctx, d.Pool, query, limit, offset)
}

func (d *PGData) CountSearch(ctx context.Context, query string) (int, error) {
	return d.Products.CountSearch(ctx, d.Pool, query)
}

func (d *PGData) ProductBySlug(ctx context.Context, slug string) (repo.Product, error) {
	return d.Products.GetBySlug(ctx, d.Pool, slug)
}

func (d *PGData) VariantsByProduct(ctx context.Context, productID string) ([]repo.Variant, error) {
	return d.Variants.ByProduct(ctx, d.Pool, productID)
}

// ErrNotFound is returned when a product slug does not exist.
var ErrNotFound = fmt.Errorf("catalog: product not found")

// Summary is one entry in the product listing.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// VariantView is a sellable variant with its shelf price. EffectivePrice
// already includes the low stock markdown, so clients render it directly.
type VariantView struct {
	ID             string  `json:"id"`
	SKU            string  `json:"sku"`
	Price          string  `json:"price"`
	ComparePrice   *string `json:"compare_price,omitempty"`
	EffectivePrice string  `json:"effective_price"`
	OnSale         bool    `json:"on_sale"`
	InStock        bool    `json:"in_stock"`
}

// Detail is the full product payload.
type Detail struct {
	Summary
	Variants []VariantView `json:"variants"`
}

// ListResult carries one page of the listing.
type ListResult struct {
	Items []Summary
	Total int
}

// Service serves the public browse endpoints. Detail and front-page reads
// go through the cache when one is configured.
type Service struct {
	Data  Data
	Cache *Cache
	Rules pricing.Rules
}

// List returns one page of products matching query.
func (s *Service) List(ctx context.Context, query string, page, perPage int) (ListResult, error) {
	query = strings.TrimSpace(query)
	cacheable := query == "" && page == 1
	if cacheable {
		var cached ListResult
		if ok, err := s.Cache.GetJSON(ctx, keyBrowse(), &cached); err == nil && ok && len(cached.Items) <= perPage {
			return cached, nil
		}
	}
	total, err := s.Data.CountSearch(ctx, query)
	if err != nil {
		return ListResult{}, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.Data.Search(ctx, query, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return ListResult{}, fmt.Errorf("search products: %w", err)
	}
	items := make([]Summary, 0, len(rows))
	for _, p := range rows {
		items = append(items, Summary{ID: p.ID, Title: p.Title, Slug: p.Slug})
	}
	result := ListResult{Items: items, Total: total}
	if cacheable {
		_ = s.Cache.SetJSON(ctx, keyBrowse(), result)
	}
	return result, nil
}

// Get returns one product with its variants and shelf prices.
func (s *Service) Get(ctx context.Context, slug string) (Detail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Detail{}, ErrNotFound
	}
	var cached Detail
	if ok, err := s.Cache.GetJSON(ctx, keyDetail(slug), &cached); err == nil && ok {
		return cached, nil
	}
	product, err := s.Data.ProductBySlug(ctx, slug)
	if err != nil {
		if repo.IsNotFound(err) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, fmt.Errorf("get product: %w", err)
	}
	variants, err := s.Data.VariantsByProduct(ctx, product.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list variants: %w", err)
	}
	detail := Detail{
		Summary:  Summary{ID: product.ID, Title: product.Title, Slug: product.Slug},
		Variants: make([]VariantView, 0, len(variants)),
	}
	for _, v := range variants {
		detail.Variants = append(detail.Variants, s.variantView(v))
	}
	_ = s.Cache.SetJSON(ctx, keyDetail(slug), detail)
	return detail, nil
}

func (s *Service) variantView(v repo.Variant) VariantView {
	effective := s.Rules.EffectivePrice(pricing.Item{
		Price:        v.Price,
		ComparePrice: v.ComparePrice,
		Stock:        v.Stock,
	})
	view := VariantView{
		ID:             v.ID,
		SKU:            v.SKU,
		Price:          v.Price.StringFixed(2),
		EffectivePrice: effective.StringFixed(2),
		OnSale:         v.OnSale(),
		InStock:        v.Stock > 0,
	}
	if v.ComparePrice != nil {
		view.ComparePrice = stringPtr(v.ComparePrice.StringFixed(2))
	}
	return view
}

func stringPtr(s string) *string { return &s }
