package order

// Status is an order's position in the fulfillment lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// PaymentStatus tracks the gateway outcome independently of fulfillment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Location is advisory physical tracking. It is deliberately not validated
// against Status; staff update it independently.
type Location string

const (
	LocationWarehouse      Location = "warehouse"
	LocationInTransitDC    Location = "in_transit_to_dc"
	LocationAtDC           Location = "at_distribution_center"
	LocationOutForDelivery Location = "out_for_delivery"
	LocationDeliveredStop  Location = "delivered"
)

// validNext is the fulfillment transition table. cancelled and refunded are
// side exits from every non-terminal state; delivered additionally allows a
// post-delivery refund.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusCancelled: true, StatusRefunded: true},
	StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true, StatusRefunded: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true, StatusRefunded: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true, StatusRefunded: true},
	StatusDelivered:  {StatusRefunded: true},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// CanTransition reports whether from -> to is a legal fulfillment move.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no further fulfillment transition can leave s.
// delivered still admits a refund, so it is not terminal here.
func Terminal(s Status) bool {
	return len(validNext[s]) == 0
}

// Qualifying reports whether an order in this status counts toward
// milestone spending.
func Qualifying(s Status) bool {
	return s == StatusConfirmed || s == StatusDelivered
}

// RequiresPayment reports whether advancing to the target status demands a
// settled payment. Fulfillment may not move past confirmed while payment is
// pending or failed.
func RequiresPayment(to Status) bool {
	switch to {
	case StatusProcessing, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// ValidStatus reports whether s names a known fulfillment status.
func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

// ValidLocation reports whether l names a known tracking location.
func ValidLocation(l Location) bool {
	switch l {
	case LocationWarehouse, LocationInTransitDC, LocationAtDC, LocationOutForDelivery, LocationDeliveredStop:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether p names a known payment status.
func ValidPaymentStatus(p PaymentStatus) bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}
