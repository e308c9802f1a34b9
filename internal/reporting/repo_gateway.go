package reporting

import (
	"context"

	"zamanyonet-admin/internal/payments"
	"zamanyonet-admin/internal/resource"
	"zamanyonet-admin/internal/scheduling"
)

// GatewayRepo reads through the resource gateways. The range is applied by
// the gateway query, so only matching rows are paged.
type GatewayRepo struct {
	Appointments resource.Gateway[scheduling.Appointment]
	Payments     resource.Gateway[payments.Payment]
}

func (r *GatewayRepo) ListAppointments(ctx context.Context, tr TimeRange) ([]scheduling.Appointment, error) {
	return collect(ctx, r.Appointments, "startsAt", tr, func(a *scheduling.Appointment) string { return a.ID })
}

func (r *GatewayRepo) ListPayments(ctx context.Context, tr TimeRange) ([]payments.Payment, error) {
	return collect(ctx, r.Payments, "createdAt", tr, func(p *payments.Payment) string { return p.ID })
}

// collect pages oldest first. A row is counted once even if a concurrent
// write moves it across a page boundary.
func collect[T any](ctx context.Context, gw resource.Gateway[T], field string, tr TimeRange, id func(*T) string) ([]T, error) {
	var out []T
	seen := map[string]struct{}{}
	q := resource.Query{
		Range:     &resource.Range{Field: field, From: tr.From, To: tr.To},
		Page:      1,
		PageSize:  resource.MaxPageSize,
		Ascending: true,
	}
	for {
		rows, total, err := gw.List(ctx, q)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			key := id(&rows[i])
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rows[i])
		}
		if len(rows) == 0 || q.Page*q.PageSize >= total {
			return out, nil
		}
		q.Page++
	}
}
