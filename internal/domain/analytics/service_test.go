package analytics

import (
	"context"
	"testing"
	"time"
)

type stubRepo struct {
	patientsSince  time.Time
	apptDay        time.Time
	apptRanges     [][2]time.Time
	revenueRanges  [][2]time.Time
	revenueByStart map[time.Time]float64
}

func (s *stubRepo) CountActivePatients(context.Context) (int, error) { return 120, nil }

func (s *stubRepo) CountPatientsCreatedSince(_ context.Context, since time.Time) (int, error) {
	s.patientsSince = since
	return 7, nil
}

func (s *stubRepo) CountLiveAppointmentsOn(_ context.Context, day time.Time) (int, error) {
	s.apptDay = day
	return 9, nil
}

func (s *stubRepo) CountAppointmentsBetween(_ context.Context, from, to time.Time) (int, error) {
	s.apptRanges = append(s.apptRanges, [2]time.Time{from, to})
	return 42, nil
}

func (s *stubRepo) SumInvoicedBetween(_ context.Context, from, to time.Time) (float64, error) {
	s.revenueRanges = append(s.revenueRanges, [2]time.Time{from, to})
	return s.revenueByStart[from], nil
}

func (s *stubRepo) CountPendingPrescriptions(context.Context) (int, error) { return 5, nil }

func TestDashboard(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)
	startOfMonth := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	startOfLastMonth := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	repo := &stubRepo{revenueByStart: map[time.Time]float64{
		startOfMonth:     1234.50,
		startOfLastMonth: 980.25,
	}}
	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	sum, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard() error: %v", err)
	}

	if sum.TotalPatients != 120 || sum.NewPatientsThisMonth != 7 ||
		sum.AppointmentsToday != 9 || sum.AppointmentsThisMonth != 42 ||
		sum.PendingPrescriptions != 5 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.RevenueThisMonth != 1234.50 || sum.RevenueLastMonth != 980.25 {
		t.Errorf("revenue = %v / %v, want month windows applied", sum.RevenueThisMonth, sum.RevenueLastMonth)
	}

	if !repo.patientsSince.Equal(startOfMonth) {
		t.Errorf("new patients window starts %v, want %v", repo.patientsSince, startOfMonth)
	}
	wantDay := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if !repo.apptDay.Equal(wantDay) {
		t.Errorf("today window = %v, want %v", repo.apptDay, wantDay)
	}
	if len(repo.revenueRanges) != 2 || !repo.revenueRanges[1][1].Equal(startOfMonth) {
		t.Errorf("last month revenue window = %v", repo.revenueRanges)
	}
}
