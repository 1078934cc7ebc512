package analytics

import (
	"context"
	"time"
)

// Summary is the dashboard counter set.
type Summary struct {
	TotalPatients         int     `json:"totalPatients"`
	NewPatientsThisMonth  int     `json:"newPatientsThisMonth"`
	AppointmentsToday     int     `json:"appointmentsToday"`
	AppointmentsThisMonth int     `json:"appointmentsThisMonth"`
	RevenueThisMonth      float64 `json:"revenueThisMonth"`
	RevenueLastMonth      float64 `json:"revenueLastMonth"`
	PendingPrescriptions  int     `json:"pendingPrescriptions"`
}

// Repository answers the dashboard's aggregate queries.
type Repository interface {
	CountActivePatients(ctx context.Context) (int, error)
	CountPatientsCreatedSince(ctx context.Context, since time.Time) (int, error)
	CountLiveAppointmentsOn(ctx context.Context, day time.Time) (int, error)
	CountAppointmentsBetween(ctx context.Context, from, to time.Time) (int, error)
	SumInvoicedBetween(ctx context.Context, from, to time.Time) (float64, error)
	CountPendingPrescriptions(ctx context.Context) (int, error)
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Dashboard assembles the practice-wide counters for the current day and
// calendar month.
func (s *Service) Dashboard(ctx context.Context) (*Summary, error) {
	now := s.now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	startOfLastMonth := startOfMonth.AddDate(0, -1, 0)
	startOfNextMonth := startOfMonth.AddDate(0, 1, 0)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var (
		sum Summary
		err error
	)
	if sum.TotalPatients, err = s.repo.CountActivePatients(ctx); err != nil {
		return nil, err
	}
	if sum.NewPatientsThisMonth, err = s.repo.CountPatientsCreatedSince(ctx, startOfMonth); err != nil {
		return nil, err
	}
	if sum.AppointmentsToday, err = s.repo.CountLiveAppointmentsOn(ctx, today); err != nil {
		return nil, err
	}
	if sum.AppointmentsThisMonth, err = s.repo.CountAppointmentsBetween(ctx, startOfMonth, startOfNextMonth); err != nil {
		return nil, err
	}
	if sum.RevenueThisMonth, err = s.repo.SumInvoicedBetween(ctx, startOfMonth, startOfNextMonth); err != nil {
		return nil, err
	}
	if sum.RevenueLastMonth, err = s.repo.SumInvoicedBetween(ctx, startOfLastMonth, startOfMonth); err != nil {
		return nil, err
	}
	if sum.PendingPrescriptions, err = s.repo.CountPendingPrescriptions(ctx); err != nil {
		return nil, err
	}
	return &sum, nil
}
