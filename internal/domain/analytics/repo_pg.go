package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) countRow(ctx context.Context, q string, args ...interface{}) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, q, args...).Scan(&n)
	return n, err
}

func (r *RepoPG) CountActivePatients(ctx context.Context) (int, error) {
	return r.countRow(ctx, "SELECT COUNT(*) FROM patients WHERE active")
}

func (r *RepoPG) CountPatientsCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return r.countRow(ctx, "SELECT COUNT(*) FROM patients WHERE active AND created_at >= $1", since)
}

func (r *RepoPG) CountLiveAppointmentsOn(ctx context.Context, day time.Time) (int, error) {
	return r.countRow(ctx,
		`SELECT COUNT(*) FROM appointments
		 WHERE appointment_date = $1 AND status NOT IN ('CANCELLED', 'NO_SHOW')`,
		day.Format("2006-01-02"))
}

func (r *RepoPG) CountAppointmentsBetween(ctx context.Context, from, to time.Time) (int, error) {
	return r.countRow(ctx,
		"SELECT COUNT(*) FROM appointments WHERE appointment_date >= $1 AND appointment_date < $2",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (r *RepoPG) SumInvoicedBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(total_amount), 0) FROM invoices WHERE service_date >= $1 AND service_date < $2",
		from, to).Scan(&total)
	return total, err
}

func (r *RepoPG) CountPendingPrescriptions(ctx context.Context) (int, error) {
	return r.countRow(ctx, "SELECT COUNT(*) FROM prescriptions WHERE status = 'PENDING'")
}
