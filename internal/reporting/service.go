package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"zamanyonet-admin/internal/payments"
	"zamanyonet-admin/internal/scheduling"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. Implementations return
// records whose reference time falls inside the range: startsAt for
// appointments, createdAt for payments.
type Repository interface {
	ListAppointments(ctx context.Context, r TimeRange) ([]scheduling.Appointment, error)
	ListPayments(ctx context.Context, r TimeRange) ([]payments.Payment, error)
}

type Service struct {
	repo     Repository
	currency string
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, currency: payments.DefaultCurrency}
}

func (s *Service) Summary(ctx context.Context, r TimeRange) (Summary, error) {
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("reporting: repository not configured")
	}
	r = TimeRange{From: r.From.UTC(), To: r.To.UTC()}

	appts, err := s.repo.ListAppointments(ctx, r)
	if err != nil {
		return Summary{}, err
	}
	pays, err := s.repo.ListPayments(ctx, r)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{
		Range:        r,
		Appointments: AppointmentSummary{ByStatus: map[string]int{}},
		Payments: PaymentSummary{
			Currency: s.currency,
			Paid:     decimal.Zero,
			Pending:  decimal.Zero,
			Refunded: decimal.Zero,
		},
	}
	for _, a := range appts {
		out.Appointments.Total++
		out.Appointments.ByStatus[string(a.Status)]++
	}
	for _, p := range pays {
		out.Payments.Count++
		if p.Currency != "" && p.Currency != s.currency {
			out.Payments.Other++
			continue
		}
		switch p.Status {
		case payments.StatusPaid:
			out.Payments.Paid = out.Payments.Paid.Add(p.Amount)
		case payments.StatusPending:
			out.Payments.Pending = out.Payments.Pending.Add(p.Amount)
		case payments.StatusRefunded:
			out.Payments.Refunded = out.Payments.Refunded.Add(p.Amount)
		case payments.StatusFailed, payments.StatusCancelled:
			// counted, not totalled
		}
	}
	return out, nil
}

// ParseRange reads RFC 3339 timestamps or plain dates (YYYY-MM-DD).
// A missing range defaults to the last 30 days ending at now.
func ParseRange(from, to string, now time.Time) (TimeRange, error) {
	r := TimeRange{From: now.AddDate(0, 0, -30), To: now}
	var err error
	if from != "" {
		if r.From, err = parseTime(from); err != nil {
			return TimeRange{}, ErrInvalidRequest
		}
	}
	if to != "" {
		if r.To, err = parseTime(to); err != nil {
			return TimeRange{}, ErrInvalidRequest
		}
	}
	if !r.To.After(r.From) {
		return TimeRange{}, ErrInvalidRequest
	}
	return r, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
