package scheduling

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"zamanyonet-admin/internal/resource"
)

// Provider is a staff member appointments can be booked with.
type Provider struct {
	resource.Base

	Name      string `json:"name" binding:"required"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	Active    bool   `json:"active"`
}

func Providers() *resource.Definition[Provider] {
	return &resource.Definition[Provider]{
		Kind:       "providers",
		Table:      "providers",
		EntityType: "Provider",
		Label:      "Provider",
		Filters:    map[string]string{"active": "active", "specialty": "specialty"},
		Prepare: func(_, next *Provider, _ time.Time) error {
			next.Name = strings.TrimSpace(next.Name)
			if next.Name == "" {
				return resource.Invalid("name", "must not be blank")
			}
			if next.Email != "" {
				addr, err := mail.ParseAddress(next.Email)
				if err != nil {
					return resource.Invalid("email", "must be a valid email")
				}
				next.Email = strings.ToLower(addr.Address)
			}
			return nil
		},
	}
}

// Service is something a customer books, with a duration and a list price.
type Service struct {
	resource.Base

	Name            string          `json:"name" binding:"required"`
	Description     string          `json:"description,omitempty"`
	DurationMinutes int             `json:"durationMinutes"`
	Price           decimal.Decimal `json:"price"`
	Active          bool            `json:"active"`
}

func Services() *resource.Definition[Service] {
	return &resource.Definition[Service]{
		Kind:       "services",
		Table:      "services",
		EntityType: "Service",
		Label:      "Service",
		Filters:    map[string]string{"active": "active"},
		Prepare: func(_, next *Service, _ time.Time) error {
			next.Name = strings.TrimSpace(next.Name)
			if next.Name == "" {
				return resource.Invalid("name", "must not be blank")
			}
			if next.DurationMinutes <= 0 {
				return resource.Invalid("durationMinutes", "must be greater than zero")
			}
			if next.Price.IsNegative() {
				return resource.Invalid("price", "must not be negative")
			}
			next.Price = next.Price.Round(2)
			return nil
		},
	}
}
