package model

import "strings"

type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleManager  Role = "Manager"
	RoleCustomer Role = "Customer"
	RoleDelivery Role = "Delivery_Person"
)

// ParseRole maps a role string from the API onto a known role, ignoring case.
// Unknown roles are returned unchanged.
func ParseRole(s string) Role {
	for _, r := range []Role{RoleAdmin, RoleManager, RoleCustomer, RoleDelivery} {
		if strings.EqualFold(s, string(r)) {
			return r
		}
	}
	return Role(s)
}

// CanUseDashboard reports whether the role has a dashboard of its own.
func (r Role) CanUseDashboard() bool {
	return r == RoleAdmin || r == RoleManager
}
