// Package auth verifies access tokens issued by the external identity
// service and models the closed set of user roles. Registration and login
// live outside this system; only the verify(token) contract is consumed here.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrInvalidToken is returned for missing, malformed, expired, or otherwise
// unverifiable tokens.
var ErrInvalidToken = errors.New("invalid token")

// Role is the closed set of user roles.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a raw role string.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return r, true
	}
	return "", false
}

// Staff reports whether the role belongs to the staff pool (staff or admin).
func (r Role) Staff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// CanManageOrders reports whether the role may change order and payment
// status on any order.
func (r Role) CanManageOrders() bool {
	return r.Staff()
}

// Claims is the verified identity attached to a request or connection.
type Claims struct {
	UserID string
	Role   Role
}

// CanViewOrder reports whether these claims may read the order owned by the
// given user.
func (c Claims) CanViewOrder(ownerID string) bool {
	return c.Role.Staff() || c.UserID == ownerID
}

// Verifier checks an access token and returns the identity it carries.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}
