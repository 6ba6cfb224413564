package voucher

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/auroramart/backend-mart/internal/repo"
)

// Service backs both the eligibility validator and the admin CRUD surface
// with Postgres.
type Service struct {
	Pool     *pgxpool.Pool
	Vouchers repo.VoucherRepo
	Orders   repo.OrderRepo
}

// NewService constructs a voucher service over the pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{Pool: pool}
}

// VoucherByCode implements Data.
func (s *Service) VoucherByCode(ctx context.Context, code string) (repo.Voucher, error) {
	return s.Vouchers.GetByCode(ctx, s.Pool, code)
}

// OrderCount implements Data.
func (s *Service) OrderCount(ctx context.Context, userID string) (int64, error) {
	return s.Orders.CountByUser(ctx, s.Pool, userID)
}

// UsageCount implements Data.
func (s *Service) UsageCount(ctx context.Context, voucherID, userID string) (int64, error) {
	return s.Vouchers.CountUsagesByUser(ctx, s.Pool, voucherID, userID)
}

// Input carries the admin-facing voucher fields.
type Input struct {
	Code             string           `json:"code" validate:"required,max=64"`
	Name             string           `json:"name" validate:"required,max=200"`
	Description      string           `json:"description"`
	Kind             string           `json:"kind" validate:"required,oneof=percent fixed_amount free_shipping"`
	Value            decimal.Decimal  `json:"value" validate:"required"`
	MaxDiscount      *decimal.Decimal `json:"max_discount,omitempty"`
	MinPurchase      decimal.Decimal  `json:"min_purchase"`
	FirstTimeOnly    bool             `json:"first_time_only"`
	ExcludeSaleItems bool             `json:"exclude_sale_items"`
	ProductIDs       []string         `json:"product_ids,omitempty" validate:"dive,uuid4"`
	CategoryIDs      []string         `json:"category_ids,omitempty" validate:"dive,uuid4"`
	MaxUses          *int32           `json:"max_uses,omitempty" validate:"omitempty,gt=0"`
	MaxUsesPerUser   int32            `json:"max_uses_per_user" validate:"gte=0"`
	UserID           string           `json:"user_id,omitempty" validate:"omitempty,uuid4"`
	IsActive         *bool            `json:"is_active,omitempty"`
	StartsAt         time.Time        `json:"starts_at" validate:"required"`
	EndsAt           time.Time        `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

func (in Input) toRow() repo.Voucher {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	perUser := in.MaxUsesPerUser
	if perUser == 0 {
		perUser = 1
	}
	return repo.Voucher{
		Code:             NormalizeCode(in.Code),
		Name:             in.Name,
		Description:      in.Description,
		Kind:             in.Kind,
		Value:            in.Value,
		MaxDiscount:      in.MaxDiscount,
		MinPurchase:      in.MinPurchase,
		FirstTimeOnly:    in.FirstTimeOnly,
		ExcludeSaleItems: in.ExcludeSaleItems,
		ProductIDs:       in.ProductIDs,
		CategoryIDs:      in.CategoryIDs,
		MaxUses:          in.MaxUses,
		MaxUsesPerUser:   perUser,
		UserID:           in.UserID,
		IsActive:         active,
		StartsAt:         in.StartsAt,
		EndsAt:           in.EndsAt,
	}
}

// Create stores a new voucher.
func (s *Service) Create(ctx context.Context, in Input) (repo.Voucher, error) {
	return s.Vouchers.Create(ctx, s.Pool, in.toRow())
}

// Update rewrites an existing voucher's mutable fields.
func (s *Service) Update(ctx context.Context, voucherID string, in Input) (repo.Voucher, error) {
	row := in.toRow()
	row.ID = voucherID
	return s.Vouchers.Update(ctx, s.Pool, row)
}

// Deactivate soft-disables a voucher; usage history stays intact.
func (s *Service) Deactivate(ctx context.Context, voucherID string) error {
	return s.Vouchers.Deactivate(ctx, s.Pool, voucherID)
}

// Get fetches one voucher by id.
func (s *Service) Get(ctx context.Context, voucherID string) (repo.Voucher, error) {
	return s.Vouchers.GetByID(ctx, s.Pool, voucherID)
}

// List returns a page of vouchers plus the total count.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Voucher, int64, error) {
	rows, err := s.Vouchers.List(ctx, s.Pool, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Vouchers.Count(ctx, s.Pool)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Voucher, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRow(row))
	}
	return out, total, nil
}

// Voucher is the API-facing shape.
type Voucher struct {
	ID               string           `json:"id"`
	Code             string           `json:"code"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	Kind             string           `json:"kind"`
	Value            decimal.Decimal  `json:"value"`
	MaxDiscount      *decimal.Decimal `json:"max_discount,omitempty"`
	MinPurchase      decimal.Decimal  `json:"min_purchase"`
	FirstTimeOnly    bool             `json:"first_time_only"`
	ExcludeSaleItems bool             `json:"exclude_sale_items"`
	ProductIDs       []string         `json:"product_ids,omitempty"`
	CategoryIDs      []string         `json:"category_ids,omitempty"`
	MaxUses          *int32           `json:"max_uses,omitempty"`
	MaxUsesPerUser   int32            `json:"max_uses_per_user"`
	CurrentUses      int32            `json:"current_uses"`
	UserID           string           `json:"user_id,omitempty"`
	IsActive         bool             `json:"is_active"`
	StartsAt         time.Time        `json:"starts_at"`
	EndsAt           time.Time        `json:"ends_at"`
	CreatedAt        time.Time        `json:"created_at"`
}

// FromRow converts a stored voucher to its API shape.
func FromRow(row repo.Voucher) Voucher {
	return Voucher{
		ID:               row.ID,
		Code:             row.Code,
		Name:             row.Name,
		Description:      row.Description,
		Kind:             row.Kind,
		Value:            row.Value,
		MaxDiscount:      row.MaxDiscount,
		MinPurchase:      row.MinPurchase,
		FirstTimeOnly:    row.FirstTimeOnly,
		ExcludeSaleItems: row.ExcludeSaleItems,
		ProductIDs:       row.ProductIDs,
		CategoryIDs:      row.CategoryIDs,
		MaxUses:          row.MaxUses,
		MaxUsesPerUser:   row.MaxUsesPerUser,
		CurrentUses:      row.CurrentUses,
		UserID:           row.UserID,
		IsActive:         row.IsActive,
		StartsAt:         row.StartsAt,
		EndsAt:           row.EndsAt,
		CreatedAt:        row.CreatedAt,
	}
}
