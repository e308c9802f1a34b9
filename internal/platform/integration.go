package platform

import (
	"strings"
	"time"

	"zamanyonet-admin/internal/resource"
)

// Integration is an entry in the integrations marketplace.
type Integration struct {
	resource.Base

	Key         string            `json:"key" binding:"required"`
	Name        string            `json:"name" binding:"required"`
	Category    string            `json:"category,omitempty"`
	Description string            `json:"description,omitempty"`
	Enabled     bool              `json:"enabled"`
	Config      map[string]string `json:"config,omitempty"`
	// InstalledAt is set the first time the integration is enabled.
	InstalledAt *time.Time `json:"installedAt"`
}

func Integrations() *resource.Definition[Integration] {
	return &resource.Definition[Integration]{
		Kind:       "integrations",
		Table:      "integrations",
		EntityType: "Integration",
		Label:      "Integration",
		Filters:    map[string]string{"enabled": "enabled", "category": "category", "key": "key"},
		Prepare:    prepareIntegration,
		UniqueKey:  func(i *Integration) string { return i.Key },
	}
}

func prepareIntegration(old, next *Integration, now time.Time) error {
	next.Key = strings.ToLower(strings.TrimSpace(next.Key))
	if !keyPattern.MatchString(next.Key) {
		return resource.Invalid("key", "must be lowercase letters, digits and dashes")
	}
	next.Name = strings.TrimSpace(next.Name)
	if next.Name == "" {
		return resource.Invalid("name", "must not be blank")
	}
	for k := range next.Config {
		if strings.TrimSpace(k) == "" {
			return resource.Invalid("config", "keys must not be blank")
		}
	}

	switch {
	case old != nil && old.InstalledAt != nil:
		next.InstalledAt = old.InstalledAt
	case next.Enabled:
		installed := now
		next.InstalledAt = &installed
	default:
		next.InstalledAt = nil
	}
	return nil
}
