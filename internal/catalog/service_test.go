package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/pricing"
	"github.com/auroramart/backend-mart/internal/repo"
)

type fakeData struct {
	products []repo.Product
	variants map[string][]repo.Variant
	searches int
}

func (f *fakeData) Search(_ context.Context, query string, limit, offset int32) ([]repo.Product, error) {
	f.searches++
	var out []repo.Product
	for _, p := range f.products {
		if query == "" || containsFold(p.Title, query) {
			out = append(out, p)
		}
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeData) CountSearch(_ context.Context, query string) (int, error) {
	n := 0
	for _, p := range f.products {
		if query == "" || containsFold(p.Title, query) {
			n++
		}
	}
	return n, nil
}

func (f *fakeData) ProductBySlug(_ context.Context, slug string) (repo.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return repo.Product{}, pgx.ErrNoRows
}

func (f *fakeData) VariantsByProduct(_ context.Context, productID string) ([]repo.Variant, error) {
	return f.variants[productID], nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testService(t *testing.T, data *fakeData) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Service{
		Data:  data,
		Cache: &Cache{R: client, TTL: time.Minute},
		Rules: pricing.Rules{
			DynamicEnabled:  true,
			LowStockAt:      5,
			MarkdownPercent: dec("20"),
		},
	}, mr
}

func TestListFiltersAndCounts(t *testing.T) {
	data := &fakeData{products: []repo.Product{
		{ID: "p1", Title: "Aurora Lamp", Slug: "aurora-lamp"},
		{ID: "p2", Title: "Desk Mat", Slug: "desk-mat"},
	}}
	svc, _ := testService(t, data)

	result, err := svc.List(context.Background(), "lamp", 1, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 1 || len(result.Items) != 1 {
		t.Fatalf("expected single match, got total=%d items=%d", result.Total, len(result.Items))
	}
	if result.Items[0].Slug != "aurora-lamp" {
		t.Fatalf("unexpected item %q", result.Items[0].Slug)
	}
}

func TestListFrontPageServedFromCache(t *testing.T) {
	data := &fakeData{products: []repo.Product{
		{ID: "p1", Title: "Aurora Lamp", Slug: "aurora-lamp"},
	}}
	svc, _ := testService(t, data)

	for i := 0; i < 3; i++ {
		if _, err := svc.List(context.Background(), "", 1, 20); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if data.searches != 1 {
		t.Fatalf("expected one backing query, got %d", data.searches)
	}
}

func TestGetAppliesLowStockMarkdown(t *testing.T) {
	compare := dec("30.00")
	data := &fakeData{
		products: []repo.Product{{ID: "p1", Title: "Aurora Lamp", Slug: "aurora-lamp"}},
		variants: map[string][]repo.Variant{"p1": {
			{ID: "v1", ProductID: "p1", SKU: "LAMP-STD", Price: dec("20.00"), Stock: 3},
			{ID: "v2", ProductID: "p1", SKU: "LAMP-SALE", Price: dec("25.00"), ComparePrice: &compare, Stock: 3},
			{ID: "v3", ProductID: "p1", SKU: "LAMP-FULL", Price: dec("20.00"), Stock: 50},
		}},
	}
	svc, _ := testService(t, data)

	detail, err := svc.Get(context.Background(), "aurora-lamp")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(detail.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(detail.Variants))
	}
	byID := map[string]VariantView{}
	for _, v := range detail.Variants {
		byID[v.ID] = v
	}
	if got := byID["v1"].EffectivePrice; got != "16.00" {
		t.Fatalf("low stock variant should be marked down, got %s", got)
	}
	if got := byID["v2"].EffectivePrice; got != "25.00" {
		t.Fatalf("manual sale should bypass markdown, got %s", got)
	}
	if !byID["v2"].OnSale {
		t.Fatalf("sale variant should report on_sale")
	}
	if got := byID["v3"].EffectivePrice; got != "20.00" {
		t.Fatalf("well stocked variant keeps base price, got %s", got)
	}
}

func TestGetUnknownSlug(t *testing.T) {
	svc, _ := testService(t, &fakeData{})
	if _, err := svc.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetServedFromCacheAfterFirstLoad(t *testing.T) {
	data := &fakeData{
		products: []repo.Product{{ID: "p1", Title: "Aurora Lamp", Slug: "aurora-lamp"}},
		variants: map[string][]repo.Variant{"p1": {{ID: "v1", ProductID: "p1", SKU: "LAMP-STD", Price: dec("20.00"), Stock: 50}}},
	}
	svc, mr := testService(t, data)

	if _, err := svc.Get(context.Background(), "aurora-lamp"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !mr.Exists("catalog:detail:aurora-lamp") {
		t.Fatalf("expected detail cache key to be set")
	}
	data.products = nil
	detail, err := svc.Get(context.Background(), "aurora-lamp")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if detail.Slug != "aurora-lamp" {
		t.Fatalf("unexpected cached payload %q", detail.Slug)
	}
}
