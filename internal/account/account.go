// Package account holds the shopper/staff identity model. Authentication is
// terminated upstream; this service trusts the identity headers injected by
// the gateway and only enforces role checks.
package account

import "time"

// Role is the coarse authorization level attached to an account.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known levels.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// AtLeast reports whether the role grants the privileges of min.
// admin > staff > customer.
func (r Role) AtLeast(min Role) bool {
	return rank(r) >= rank(min)
}

func rank(r Role) int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleStaff:
		return 2
	case RoleCustomer:
		return 1
	}
	return 0
}

// Account is a registered shopper or operator.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
