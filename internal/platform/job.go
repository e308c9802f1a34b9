package platform

import (
	"encoding/json"
	"strings"
	"time"

	"zamanyonet-admin/internal/resource"
)

// Job is a scheduler entry shown in the admin UI. Nothing in this service
// executes it.
type Job struct {
	resource.Base

	Name      string          `json:"name" binding:"required"`
	Schedule  string          `json:"schedule" binding:"required"`
	Handler   string          `json:"handler" binding:"required"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Enabled   bool            `json:"enabled"`
	LastRunAt *time.Time      `json:"lastRunAt,omitempty"`
}

func Jobs() *resource.Definition[Job] {
	return &resource.Definition[Job]{
		Kind:       "jobs",
		Table:      "jobs",
		EntityType: "Job",
		Label:      "Job",
		Filters:    map[string]string{"enabled": "enabled", "handler": "handler"},
		Prepare:    prepareJob,
	}
}

func prepareJob(old, next *Job, _ time.Time) error {
	next.Name = strings.TrimSpace(next.Name)
	if next.Name == "" {
		return resource.Invalid("name", "must not be blank")
	}
	next.Schedule = strings.Join(strings.Fields(next.Schedule), " ")
	if err := ValidateCron(next.Schedule); err != nil {
		return err
	}
	if len(next.Payload) > 0 && !json.Valid(next.Payload) {
		return resource.Invalid("payload", "must be valid JSON")
	}
	next.LastRunAt = nil
	if old != nil {
		next.LastRunAt = old.LastRunAt
	}
	return nil
}

// ValidateCron checks the shape of a five-field cron expression: field count
// and allowed characters. Ranges are not evaluated.
func ValidateCron(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return resource.Invalid("schedule", "must have 5 fields (minute hour day month weekday)")
	}
	for _, f := range fields {
		if strings.Trim(f, "0123456789*/,-") != "" {
			if !isNamedField(f) {
				return resource.Invalid("schedule", "field %q has unsupported characters", f)
			}
		}
	}
	return nil
}

// isNamedField allows month and weekday names such as JAN or MON-FRI.
func isNamedField(f string) bool {
	for _, r := range strings.ToUpper(f) {
		if (r < 'A' || r > 'Z') && !strings.ContainsRune("0123456789*/,-", r) {
			return false
		}
	}
	return true
}
