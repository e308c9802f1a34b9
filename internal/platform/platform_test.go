package platform

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zamanyonet-admin/internal/audit"
	"zamanyonet-admin/internal/resource"
)

func TestModule_LicenseKeyMasked(t *testing.T) {
	repo := audit.NewMemoryRepo()
	gw := resource.NewMemoryGateway(Modules(), audit.NewService(repo), repo)

	created, err := gw.Create(context.Background(), Module{Key: "sms", Name: "SMS reminders", LicenseKey: "LIC-1234-5678-9999", Seats: 5})
	require.NoError(t, err)
	assert.Equal(t, "LIC-1234-5678-9999", created.LicenseKey)

	entries := repo.Entries()
	require.Len(t, entries, 1)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(entries[0].NewValues, &snap))
	assert.Equal(t, "****9999", snap["licenseKey"])

	_, next, err := gw.Update(context.Background(), created.ID, func(old Module) (Module, error) {
		old.LicenseKey = "****9999"
		old.Seats = 10
		return old, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "LIC-1234-5678-9999", next.LicenseKey)
	assert.Equal(t, 10, next.Seats)
}

func TestModule_Validation(t *testing.T) {
	bad := []Module{
		{Key: "", Name: "x"},
		{Key: "Has Space", Name: "x"},
		{Key: "ok", Name: " "},
		{Key: "ok", Name: "x", Seats: -1},
	}
	for _, m := range bad {
		m := m
		assert.True(t, resource.IsValidation(prepareModule(nil, &m, time.Now())), "%+v", m)
	}
}

func TestIntegration_InstalledAtOnFirstEnable(t *testing.T) {
	t1 := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	disabled := Integration{Key: "google-calendar", Name: "Google Calendar"}
	require.NoError(t, prepareIntegration(nil, &disabled, t1))
	assert.Nil(t, disabled.InstalledAt)

	enabled := disabled
	enabled.Enabled = true
	require.NoError(t, prepareIntegration(&disabled, &enabled, t1))
	require.NotNil(t, enabled.InstalledAt)

	toggled := enabled
	toggled.Enabled = false
	require.NoError(t, prepareIntegration(&enabled, &toggled, t2))
	require.NotNil(t, toggled.InstalledAt)
	assert.Equal(t, t1, *toggled.InstalledAt)
}

func TestValidateCron(t *testing.T) {
	for _, ok := range []string{"*/5 * * * *", "0 9 * * MON-FRI", "30 2 1,15 JAN *"} {
		assert.NoError(t, ValidateCron(ok), ok)
	}
	for _, bad := range []string{"* * * *", "* * * * * *", "0 9 * * mon;rm", "@daily"} {
		assert.Error(t, ValidateCron(bad), bad)
	}
}

func TestJob_PayloadMustBeJSON(t *testing.T) {
	j := Job{Name: "nightly", Schedule: "0   3 * * *", Handler: "reports.daily", Payload: json.RawMessage(`{"a":`)}
	assert.True(t, resource.IsValidation(prepareJob(nil, &j, time.Now())))

	j.Payload = json.RawMessage(`{"a":1}`)
	require.NoError(t, prepareJob(nil, &j, time.Now()))
	assert.Equal(t, "0 3 * * *", j.Schedule)
}

const catalogYAML = `
modules:
  - key: sms
    name: SMS reminders
    enabled: true
    licenseKey: LIC-0000-1111
    seats: 10
integrations:
  - key: google-calendar
    name: Google Calendar
    category: calendar
    enabled: true
    config:
      scope: read
`

func TestSeed_UpsertsByKeyWithAudit(t *testing.T) {
	repo := audit.NewMemoryRepo()
	svc := audit.NewService(repo)
	modules := resource.NewMemoryGateway(Modules(), svc, repo)
	integrations := resource.NewMemoryGateway(Integrations(), svc, repo)

	cat, err := LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	require.Len(t, cat.Modules, 1)
	require.Len(t, cat.Integrations, 1)

	res, err := Seed(context.Background(), modules, integrations, cat)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Created: 2}, res)

	cat.Modules[0].Seats = 25
	res, err = Seed(context.Background(), modules, integrations, cat)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Updated: 2}, res)

	rows, total, err := modules.List(context.Background(), resource.Query{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, 25, rows[0].Seats)

	entries := repo.Entries()
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.Empty(t, e.ActorID)
	}
	assert.Equal(t, audit.ActionUpdate, entries[2].Action)
}

func TestLoadCatalog_RejectsUnknownFields(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("modules:\n  - key: sms\n    colour: red\n"))
	assert.Error(t, err)

	empty, err := LoadCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Modules)
}
