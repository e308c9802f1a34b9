package platform

import (
	"regexp"
	"strings"
	"time"

	"zamanyonet-admin/internal/resource"
)

// Module is a licensable feature of the panel. Records are informational;
// nothing gates features on them.
type Module struct {
	resource.Base

	Key        string     `json:"key" binding:"required"`
	Name       string     `json:"name" binding:"required"`
	Enabled    bool       `json:"enabled"`
	LicenseKey string     `json:"licenseKey,omitempty"`
	Seats      int        `json:"seats"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{1,62}$`)

func Modules() *resource.Definition[Module] {
	return &resource.Definition[Module]{
		Kind:       "modules",
		Table:      "modules",
		EntityType: "Module",
		Label:      "Module",
		Filters:    map[string]string{"enabled": "enabled", "key": "key"},
		Prepare:    prepareModule,
		Present: func(m *Module) any {
			out := *m
			out.LicenseKey = resource.MaskSecret(m.LicenseKey)
			return out
		},
		UniqueKey: func(m *Module) string { return m.Key },
	}
}

func prepareModule(old, next *Module, _ time.Time) error {
	next.Key = strings.ToLower(strings.TrimSpace(next.Key))
	if !keyPattern.MatchString(next.Key) {
		return resource.Invalid("key", "must be lowercase letters, digits and dashes")
	}
	next.Name = strings.TrimSpace(next.Name)
	if next.Name == "" {
		return resource.Invalid("name", "must not be blank")
	}
	if next.Seats < 0 {
		return resource.Invalid("seats", "must not be negative")
	}
	if old != nil {
		next.LicenseKey = resource.KeepSecret(next.LicenseKey, old.LicenseKey)
	}
	return nil
}
