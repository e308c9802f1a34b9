package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"zamanyonet-admin/internal/resource"
)

// Catalog is the seed file format for zyctl seed:
//
//	modules:
//	  - key: sms
//	    name: SMS reminders
//	    enabled: true
//	    seats: 10
//	integrations:
//	  - key: google-calendar
//	    name: Google Calendar
//	    category: calendar
type Catalog struct {
	Modules      []CatalogModule      `yaml:"modules"`
	Integrations []CatalogIntegration `yaml:"integrations"`
}

type CatalogModule struct {
	Key        string     `yaml:"key"`
	Name       string     `yaml:"name"`
	Enabled    bool       `yaml:"enabled"`
	LicenseKey string     `yaml:"licenseKey"`
	Seats      int        `yaml:"seats"`
	ExpiresAt  *time.Time `yaml:"expiresAt"`
}

type CatalogIntegration struct {
	Key         string            `yaml:"key"`
	Name        string            `yaml:"name"`
	Category    string            `yaml:"category"`
	Description string            `yaml:"description"`
	Enabled     bool              `yaml:"enabled"`
	Config      map[string]string `yaml:"config"`
}

func LoadCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalog{}, nil
		}
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}

type SeedResult struct {
	Created int
	Updated int
}

// Seed upserts catalog entries by key through the audited gateways, so every
// change lands in the audit trail like any other write.
func Seed(ctx context.Context, modules resource.Gateway[Module], integrations resource.Gateway[Integration], c Catalog) (SeedResult, error) {
	var res SeedResult
	for _, m := range c.Modules {
		apply := func(rec Module) Module {
			rec.Key, rec.Name, rec.Enabled = m.Key, m.Name, m.Enabled
			rec.Seats, rec.ExpiresAt = m.Seats, m.ExpiresAt
			if m.LicenseKey != "" {
				rec.LicenseKey = m.LicenseKey
			}
			return rec
		}
		created, err := upsert(ctx, modules, m.Key, apply)
		if err != nil {
			return res, fmt.Errorf("module %q: %w", m.Key, err)
		}
		res.count(created)
	}
	for _, i := range c.Integrations {
		apply := func(rec Integration) Integration {
			rec.Key, rec.Name, rec.Category = i.Key, i.Name, i.Category
			rec.Description, rec.Enabled, rec.Config = i.Description, i.Enabled, i.Config
			return rec
		}
		created, err := upsert(ctx, integrations, i.Key, apply)
		if err != nil {
			return res, fmt.Errorf("integration %q: %w", i.Key, err)
		}
		res.count(created)
	}
	return res, nil
}

func (r *SeedResult) count(created bool) {
	if created {
		r.Created++
	} else {
		r.Updated++
	}
}

func upsert[T any](ctx context.Context, gw resource.Gateway[T], key string, apply func(T) T) (bool, error) {
	rows, _, err := gw.List(ctx, resource.Query{Filters: map[string]string{"key": key}, PageSize: 1})
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		var zero T
		_, err := gw.Create(ctx, apply(zero))
		return true, err
	}
	id := any(&rows[0]).(interface{ Meta() *resource.Base }).Meta().ID
	_, _, err = gw.Update(ctx, id, func(old T) (T, error) { return apply(old), nil })
	return false, err
}
