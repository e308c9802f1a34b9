package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"zamanyonet-admin/internal/auth"
	"zamanyonet-admin/internal/rbac"
	"zamanyonet-admin/internal/resource"
)

// User is an admin panel account.
type User struct {
	resource.Base

	Email  string `json:"email" binding:"required,email"`
	Name   string `json:"name" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=ADMIN STAFF PROVIDER"`
	Active bool   `json:"active"`

	// Password is input only; the stored document keeps PasswordHash.
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

// UserView is what clients and the audit trail see.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func PresentUser(u *User) any {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func Users(hasher *auth.PasswordHasher) *resource.Definition[User] {
	return &resource.Definition[User]{
		Kind:       "users",
		Table:      "users",
		EntityType: "User",
		Label:      "User",
		Filters:    map[string]string{"role": "role", "active": "active", "email": "email"},
		Prepare: func(old, next *User, _ time.Time) error {
			return prepareUser(hasher, old, next)
		},
		FilterValue: func(field, v string) string {
			if field == "email" {
				return strings.ToLower(v)
			}
			return v
		},
		Present:   PresentUser,
		UniqueKey: func(u *User) string { return u.Email },
	}
}

func prepareUser(hasher *auth.PasswordHasher, old, next *User) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(next.Email))
	if err != nil {
		return resource.Invalid("email", "must be a valid email")
	}
	next.Email = strings.ToLower(addr.Address)
	next.Name = strings.TrimSpace(next.Name)
	if next.Name == "" {
		return resource.Invalid("name", "must not be blank")
	}
	if !rbac.IsValidRole(next.Role) {
		return resource.Invalid("role", "must be one of ADMIN STAFF PROVIDER")
	}

	password := next.Password
	next.Password = ""
	switch {
	case password != "":
		if len(password) < auth.MinPasswordLength {
			return resource.Invalid("password", "must be at least %d characters", auth.MinPasswordLength)
		}
		hash, err := hasher.Hash(password)
		if err != nil {
			return err
		}
		next.PasswordHash = hash
	case old != nil:
		next.PasswordHash = old.PasswordHash
	default:
		return resource.Invalid("password", "is required")
	}
	return nil
}

// Directory adapts the user gateway to auth.UserDirectory.
type Directory struct {
	users resource.Gateway[User]
}

func NewDirectory(users resource.Gateway[User]) *Directory {
	return &Directory{users: users}
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (auth.Identity, error) {
	found, _, err := d.users.List(ctx, resource.Query{
		Filters:  map[string]string{"email": strings.ToLower(strings.TrimSpace(email))},
		PageSize: 1,
	})
	if err != nil {
		return auth.Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	if len(found) == 0 {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}
	u := found[0]
	return auth.Identity{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Active:       u.Active,
		PasswordHash: u.PasswordHash,
	}, nil
}

// EnsureAdmin creates an active ADMIN with the given credentials unless a
// user with that email already exists. It reports whether one was created.
func EnsureAdmin(ctx context.Context, users resource.Gateway[User], email, password string) (bool, error) {
	_, err := NewDirectory(users).FindByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		return false, err
	}
	_, err = users.Create(ctx, User{
		Email:    email,
		Name:     "Administrator",
		Role:     rbac.RoleAdmin,
		Active:   true,
		Password: password,
	})
	if errors.Is(err, resource.ErrConflict) {
		return false, nil
	}
	return err == nil, err
}
