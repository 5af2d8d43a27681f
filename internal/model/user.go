package model

import "time"

// Role values stored in users.role. Self-registration accepts only
// RoleCustomer and RoleSupplier; RoleAdmin is assigned through the
// admin-only registration path or admin CRUD.
const (
	RoleCustomer = "customer"
	RoleSupplier = "supplier"
	RoleAdmin    = "admin"
)

// User represents an application user record as stored in the `users`
// table. Accounts start inactive and become active after OTP
// verification; admin-created accounts are active immediately.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, normalized (lower-cased) email address.
//  PasswordHash – bcrypt hashed password.
//  FirstName    – optional given name.
//  LastName     – optional family name.
//  Role         – one of the Role* constants.
//  IsActive     – whether the account may authenticate.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// ValidSelfRegisterRole reports whether role may be chosen during
// self-registration.
func ValidSelfRegisterRole(role string) bool {
	return role == RoleCustomer || role == RoleSupplier
}
