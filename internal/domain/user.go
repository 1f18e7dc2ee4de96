package domain

import "time"

type Role string

const (
	RoleCustomer  Role = "customer"
	RoleFrontDesk Role = "front_desk"
	RoleManager   Role = "manager"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleCustomer, RoleFrontDesk, RoleManager:
		return r, true
	}
	return "", false
}

// IsStaff is true for roles allowed to operate on other guests' bookings.
func (r Role) IsStaff() bool {
	switch r {
	case RoleManager, RoleFrontDesk:
		return true
	case RoleCustomer:
		return false
	}
	return false
}

// CanManageRooms is true for roles allowed to edit inventory and read reports.
func (r Role) CanManageRooms() bool {
	switch r {
	case RoleManager:
		return true
	case RoleFrontDesk, RoleCustomer:
		return false
	}
	return false
}

type User struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}

// Principal is the authenticated caller, as handed over by the auth layer.
type Principal struct {
	ID   int64
	Role Role
}

// Owns reports whether p is the guest on b.
func (p Principal) Owns(b Booking) bool { return p.ID != 0 && b.GuestID == p.ID }
