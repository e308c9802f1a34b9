package scheduling

import (
	"time"

	"zamanyonet-admin/internal/resource"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentNoShow    AppointmentStatus = "NO_SHOW"
)

type Appointment struct {
	resource.Base

	CustomerID string            `json:"customerId" binding:"required"`
	ProviderID string            `json:"providerId" binding:"required"`
	ServiceID  string            `json:"serviceId" binding:"required"`
	StartsAt   time.Time         `json:"startsAt" binding:"required"`
	EndsAt     time.Time         `json:"endsAt" binding:"required"`
	Status     AppointmentStatus `json:"status" binding:"required,oneof=SCHEDULED CONFIRMED COMPLETED CANCELLED NO_SHOW"`
	Notes      string            `json:"notes,omitempty"`
}

func Appointments() *resource.Definition[Appointment] {
	return &resource.Definition[Appointment]{
		Kind:       "appointments",
		Table:      "appointments",
		EntityType: "Appointment",
		Label:      "Appointment",
		Filters: map[string]string{
			"status":     "status",
			"customerId": "customerId",
			"providerId": "providerId",
			"serviceId":  "serviceId",
		},
		Prepare: func(_, next *Appointment, _ time.Time) error {
			if !next.EndsAt.After(next.StartsAt) {
				return resource.Invalid("endsAt", "must be after startsAt")
			}
			next.StartsAt = next.StartsAt.UTC()
			next.EndsAt = next.EndsAt.UTC()
			return nil
		},
	}
}
