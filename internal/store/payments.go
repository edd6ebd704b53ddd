package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryFilter narrows the administrative payment history. Status matches
// either phase's status column unless PaymentType pins a single phase.
type HistoryFilter struct {
	Status      string
	PaymentType string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

type HistoryEntry struct {
	AppointmentID     int64     `json:"appointment_id"`
	PatientName       string    `json:"patient_name"`
	DoctorName        string    `json:"doctor_name"`
	AppointmentStatus string    `json:"appointment_status"`
	Payment           Payment   `json:"payment"`
	CreatedAt         time.Time `json:"created_at"`
}

type PaymentsStore struct {
	db *pgxpool.Pool
}

// SetOrderID records the gateway order handle for the current in-flight
// payment attempt. Only the latest order is retained, whichever phase it was
// created for.
func (s *PaymentsStore) SetOrderID(ctx context.Context, appointmentID int64, orderID string) error {
	query := `UPDATE appointments SET order_id = $1, updated_at = now() WHERE id = $2`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := s.db.Exec(ctx, query, orderID, appointmentID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPhasePaid advances one phase's status to paid. The gateway payment
// handle is recorded on the advance phase only. Each phase writes its own
// column, so the other phase's status is never touched.
func (s *PaymentsStore) MarkPhasePaid(ctx context.Context, appointmentID int64, phase, paymentID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var query string
	var args []any
	switch phase {
	case PhaseAdvance:
		query = `UPDATE appointments
		         SET advance_payment_status = 'paid', payment_id = $1, updated_at = now()
		         WHERE id = $2`
		args = []any{paymentID, appointmentID}
	case PhaseRemaining:
		query = `UPDATE appointments
		         SET final_payment_status = 'paid', updated_at = now()
		         WHERE id = $1`
		args = []any{appointmentID}
	default:
		return fmt.Errorf("unknown payment phase: %s", phase)
	}

	result, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPhaseFailed records a failed attempt on one phase.
func (s *PaymentsStore) MarkPhaseFailed(ctx context.Context, appointmentID int64, phase string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var column string
	switch phase {
	case PhaseAdvance:
		column = "advance_payment_status"
	case PhaseRemaining:
		column = "final_payment_status"
	default:
		return fmt.Errorf("unknown payment phase: %s", phase)
	}

	query := fmt.Sprintf(`UPDATE appointments SET %s = 'failed', updated_at = now() WHERE id = $1`, column)

	result, err := s.db.Exec(ctx, query, appointmentID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// History returns a filtered, paginated page of appointment payment records
// plus the total match count.
func (s *PaymentsStore) History(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, int, error) {
	where := []string{"1=1"}
	args := []any{}
	argCounter := 1

	if filter.Status != "" {
		switch filter.PaymentType {
		case PhaseAdvance:
			where = append(where, fmt.Sprintf("a.advance_payment_status = $%d", argCounter))
			args = append(args, filter.Status)
			argCounter++
		case PhaseRemaining:
			where = append(where, fmt.Sprintf("a.final_payment_status = $%d", argCounter))
			args = append(args, filter.Status)
			argCounter++
		default:
			// No phase pinned: a status matches if either phase carries it.
			where = append(where, fmt.Sprintf("(a.advance_payment_status = $%d OR a.final_payment_status = $%d)", argCounter, argCounter))
			args = append(args, filter.Status)
			argCounter++
		}
	}

	if filter.From != nil {
		where = append(where, fmt.Sprintf("a.created_at >= $%d", argCounter))
		args = append(args, *filter.From)
		argCounter++
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("a.created_at <= $%d", argCounter))
		args = append(args, *filter.To)
		argCounter++
	}

	whereClause := strings.Join(where, " AND ")

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var total int
	countQuery := `SELECT COUNT(*) FROM appointments a WHERE ` + whereClause
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
	  SELECT a.id, p.name, d.name, a.status,
	         a.advance_amount, a.remaining_amount, a.total_amount,
	         a.advance_payment_status, a.final_payment_status,
	         a.order_id, a.payment_id,
	         a.created_at
	  FROM appointments a
	  JOIN users p ON p.id = a.patient_id
	  JOIN users d ON d.id = a.doctor_id
	  WHERE %s
	  ORDER BY a.created_at DESC
	  LIMIT $%d OFFSET $%d`, whereClause, argCounter, argCounter+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.AppointmentID,
			&e.PatientName,
			&e.DoctorName,
			&e.AppointmentStatus,
			&e.Payment.AdvanceAmount,
			&e.Payment.RemainingAmount,
			&e.Payment.TotalAmount,
			&e.Payment.AdvancePaymentStatus,
			&e.Payment.FinalPaymentStatus,
			&e.Payment.OrderID,
			&e.Payment.PaymentID,
			&e.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// TotalRevenue sums total_amount across fully settled appointments. It is a
// global aggregate: the history filters do not narrow it.
func (s *PaymentsStore) TotalRevenue(ctx context.Context) (int64, error) {
	query := `
	  SELECT COALESCE(SUM(total_amount), 0)
	  FROM appointments
	  WHERE final_payment_status = 'paid'
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var total int64
	if err := s.db.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
