package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Order mirrors one row of the orders table. Address fields are snapshots
// captured at checkout so later profile edits never rewrite history.
type Order struct {
	ID            string
	OrderNumber   string
	UserID        string
	Status        string
	PaymentStatus string
	Location      string

	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal

	VoucherCode string

	ReceiverName  string
	ContactNumber string
	AddressLine1  string
	AddressLine2  string
	City          string
	Province      string
	PostalCode    string
	Country       string

	TrackingNumber string
	CustomerNotes  string
	AdminNotes     string

	CreatedAt            time.Time
	PaidAt               *time.Time
	ShippedAt            *time.Time
	DeliveredAt          *time.Time
	ExpectedDeliveryDate *time.Time
}

// OrderItem is one purchased line with its price snapshot.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	VariantID string
	Qty       int32
	UnitPrice decimal.Decimal
}

const orderColumns = `id, order_number, user_id, status, payment_status, location,
	subtotal, tax, shipping, discount, total, voucher_code,
	receiver_name, contact_number, address_line1, address_line2, city, province, postal_code, country,
	tracking_number, customer_notes, admin_notes,
	created_at, paid_at, shipped_at, delivered_at, expected_delivery_date`

// OrderRepo provides order persistence.
type OrderRepo struct{}

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var (
		o                                      Order
		id, userID                             pgtype.UUID
		subtotal, tax, shipping, disc, total   pgtype.Numeric
		voucherCode, line2, tracking           pgtype.Text
		customerNotes, adminNotes              pgtype.Text
		paidAt, shippedAt, deliveredAt, expect pgtype.Timestamptz
	)
	err := row.Scan(&id, &o.OrderNumber, &userID, &o.Status, &o.PaymentStatus, &o.Location,
		&subtotal, &tax, &shipping, &disc, &total, &voucherCode,
		&o.ReceiverName, &o.ContactNumber, &o.AddressLine1, &line2, &o.City, &o.Province, &o.PostalCode, &o.Country,
		&tracking, &customerNotes, &adminNotes,
		&o.CreatedAt, &paidAt, &shippedAt, &deliveredAt, &expect)
	if err != nil {
		return Order{}, err
	}
	o.ID = uuidString(id)
	o.UserID = uuidString(userID)
	o.Subtotal = numericToDecimal(subtotal)
	o.Tax = numericToDecimal(tax)
	o.Shipping = numericToDecimal(shipping)
	o.Discount = numericToDecimal(disc)
	o.Total = numericToDecimal(total)
	o.VoucherCode = textToString(voucherCode)
	o.AddressLine2 = textToString(line2)
	o.TrackingNumber = textToString(tracking)
	o.CustomerNotes = textToString(customerNotes)
	o.AdminNotes = textToString(adminNotes)
	o.PaidAt = timePtr(paidAt)
	o.ShippedAt = timePtr(shippedAt)
	o.DeliveredAt = timePtr(deliveredAt)
	o.ExpectedDeliveryDate = timePtr(expect)
	return o, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

// Insert stores a new order row.
func (OrderRepo) Insert(ctx context.Context, db DB, o Order) (Order, error) {
	userID, err := pgUUID(o.UserID)
	if err != nil {
		return Order{}, err
	}
	row := db.QueryRow(ctx, `INSERT INTO orders
		(order_number, user_id, status, payment_status, location,
		 subtotal, tax, shipping, discount, total, voucher_code,
		 receiver_name, contact_number, address_line1, address_line2, city, province, postal_code, country,
		 customer_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING `+orderColumns,
		o.OrderNumber, userID, o.Status, o.PaymentStatus, o.Location,
		decimalToNumeric(o.Subtotal), decimalToNumeric(o.Tax), decimalToNumeric(o.Shipping),
		decimalToNumeric(o.Discount), decimalToNumeric(o.Total), textOrNil(o.VoucherCode),
		o.ReceiverName, o.ContactNumber, o.AddressLine1, textOrNil(o.AddressLine2),
		o.City, o.Province, o.PostalCode, o.Country, textOrNil(o.CustomerNotes))
	return scanOrder(row)
}

// InsertItems stores the order's line items.
func (OrderRepo) InsertItems(ctx context.Context, db DB, orderID string, items []OrderItem) error {
	oid, err := pgUUID(orderID)
	if err != nil {
		return err
	}
	for _, item := range items {
		pid, err := pgUUID(item.ProductID)
		if err != nil {
			return err
		}
		vid, err := pgUUID(item.VariantID)
		if err != nil {
			return err
		}
		_, err = db.Exec(ctx, `INSERT INTO order_items (order_id, product_id, variant_id, qty, unit_price)
			VALUES ($1, $2, $3, $4, $5)`, oid, pid, vid, item.Qty, decimalToNumeric(item.UnitPrice))
		if err != nil {
			return fmt.Errorf("insert item %s: %w", item.VariantID, err)
		}
	}
	return nil
}

// GetByID fetches one order.
func (OrderRepo) GetByID(ctx context.Context, db DB, orderID string) (Order, error) {
	id, err := pgUUID(orderID)
	if err != nil {
		return Order{}, err
	}
	row := db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetByIDForUpdate fetches one order, locking the row for the transaction.
func (OrderRepo) GetByIDForUpdate(ctx context.Context, db DB, orderID string) (Order, error) {
	id, err := pgUUID(orderID)
	if err != nil {
		return Order{}, err
	}
	row := db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

// GetByNumber fetches one order by its human readable number.
func (OrderRepo) GetByNumber(ctx context.Context, db DB, number string) (Order, error) {
	row := db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
	return scanOrder(row)
}

// Items returns the order's line items.
func (OrderRepo) Items(ctx context.Context, db DB, orderID string) ([]OrderItem, error) {
	oid, err := pgUUID(orderID)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT id, order_id, product_id, variant_id, qty, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id`, oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var (
			item          OrderItem
			id, ord       pgtype.UUID
			prod, variant pgtype.UUID
			price         pgtype.Numeric
		)
		if err := rows.Scan(&id, &ord, &prod, &variant, &item.Qty, &price); err != nil {
			return nil, err
		}
		item.ID = uuidString(id)
		item.OrderID = uuidString(ord)
		item.ProductID = uuidString(prod)
		item.VariantID = uuidString(variant)
		item.UnitPrice = numericToDecimal(price)
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListByUser returns the user's orders, newest first.
func (OrderRepo) ListByUser(ctx context.Context, db DB, userID string, limit, offset int) ([]Order, error) {
	uid, err := pgUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, uid, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountByUser counts all of a user's orders regardless of status.
func (OrderRepo) CountByUser(ctx context.Context, db DB, userID string) (int64, error) {
	uid, err := pgUUID(userID)
	if err != nil {
		return 0, err
	}
	var count int64
	err = db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, uid).Scan(&count)
	return count, err
}

// SetStatus updates the fulfillment status and stamps the matching timestamp
// column for shipped and delivered.
func (OrderRepo) SetStatus(ctx context.Context, db DB, orderID, status string) error {
	id, err := pgUUID(orderID)
	if err != nil {
		return err
	}
	var tag pgconn.CommandTag
	switch status {
	case "shipped":
		tag, err = db.Exec(ctx, `UPDATE orders SET status = $2, shipped_at = now() WHERE id = $1`, id, status)
	case "delivered":
		tag, err = db.Exec(ctx, `UPDATE orders SET status = $2, delivered_at = now(), location = 'delivered' WHERE id = $1`, id, status)
	default:
		tag, err = db.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", orderID, pgx.ErrNoRows)
	}
	return nil
}

// SetPaymentStatus updates the payment status, stamping paid_at when paid.
func (OrderRepo) SetPaymentStatus(ctx context.Context, db DB, orderID, paymentStatus string) error {
	id, err := pgUUID(orderID)
	if err != nil {
		return err
	}
	var tag pgconn.CommandTag
	if paymentStatus == "paid" {
		tag, err = db.Exec(ctx, `UPDATE orders SET payment_status = $2, paid_at = now() WHERE id = $1`, id, paymentStatus)
	} else {
		tag, err = db.Exec(ctx, `UPDATE orders SET payment_status = $2 WHERE id = $1`, id, paymentStatus)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", orderID, pgx.ErrNoRows)
	}
	return nil
}

// SetLocation updates the advisory tracking location.
func (OrderRepo) SetLocation(ctx context.Context, db DB, orderID, location string) error {
	id, err := pgUUID(orderID)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `UPDATE orders SET location = $2 WHERE id = $1`, id, location)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", orderID, pgx.ErrNoRows)
	}
	return nil
}

// SetExpectedDelivery stamps the projected delivery date.
func (OrderRepo) SetExpectedDelivery(ctx context.Context, db DB, orderID string, date time.Time) error {
	id, err := pgUUID(orderID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `UPDATE orders SET expected_delivery_date = $2 WHERE id = $1`, id, date)
	return err
}

// SetTracking stores the courier tracking number.
func (OrderRepo) SetTracking(ctx context.Context, db DB, orderID, trackingNumber string) error {
	id, err := pgUUID(orderID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `UPDATE orders SET tracking_number = $2 WHERE id = $1`, id, textOrNil(trackingNumber))
	return err
}

// Delete removes an order and, via cascade, its items. Only used for the
// pre-confirmation payment failure path.
func (OrderRepo) Delete(ctx context.Context, db DB, orderID string) error {
	id, err := pgUUID(orderID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

// SumQualifyingSubtotal sums subtotals of the user's orders in qualifying
// statuses, the milestone engine's cumulative spend.
func (OrderRepo) SumQualifyingSubtotal(ctx context.Context, db DB, userID string, statuses []string) (decimal.Decimal, error) {
	uid, err := pgUUID(userID)
	if err != nil {
		return decimal.Zero, err
	}
	var sum pgtype.Numeric
	err = db.QueryRow(ctx, `SELECT COALESCE(sum(subtotal), 0) FROM orders
		WHERE user_id = $1 AND status = ANY($2)`, uid, statuses).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(sum), nil
}
