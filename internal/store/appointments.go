package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Payment phases of an appointment: the advance installment locks the
// booking, the remaining installment settles it.
const (
	PhaseAdvance   = "advance"
	PhaseRemaining = "remaining"
)

const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
	PaymentStatusFailed = "failed"
)

const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// ValidPhase reports whether s is a recognized payment phase.
func ValidPhase(s string) bool {
	return s == PhaseAdvance || s == PhaseRemaining
}

// Payment is the embedded payment record of an appointment. Amounts are in
// rupees; conversion to paise happens only at the gateway boundary.
type Payment struct {
	AdvanceAmount        int64   `json:"advance_amount"`
	RemainingAmount      int64   `json:"remaining_amount"`
	TotalAmount          int64   `json:"total_amount"`
	AdvancePaymentStatus string  `json:"advance_payment_status"`
	FinalPaymentStatus   string  `json:"final_payment_status"`
	OrderID              *string `json:"order_id,omitempty"`
	PaymentID            *string `json:"payment_id,omitempty"`
}

type Appointment struct {
	ID          int64     `json:"id"`
	PatientID   int64     `json:"patient_id"`
	DoctorID    int64     `json:"doctor_id"`
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Payment     Payment   `json:"payment"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AppointmentsStore struct {
	db *pgxpool.Pool
}

const appointmentColumns = `
	a.id, a.patient_id, a.doctor_id, p.name, d.name, a.status, a.scheduled_at,
	a.advance_amount, a.remaining_amount, a.total_amount,
	a.advance_payment_status, a.final_payment_status,
	a.order_id, a.payment_id,
	a.created_at, a.updated_at`

func scanAppointment(row pgx.Row, a *Appointment) error {
	return row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.PatientName,
		&a.DoctorName,
		&a.Status,
		&a.ScheduledAt,
		&a.Payment.AdvanceAmount,
		&a.Payment.RemainingAmount,
		&a.Payment.TotalAmount,
		&a.Payment.AdvancePaymentStatus,
		&a.Payment.FinalPaymentStatus,
		&a.Payment.OrderID,
		&a.Payment.PaymentID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
}

// Create inserts an appointment with its embedded payment record. Both phase
// statuses start as unpaid.
func (s *AppointmentsStore) Create(ctx context.Context, a *Appointment) error {
	query := `
	  INSERT INTO appointments (
	      patient_id, doctor_id, status, scheduled_at,
	      advance_amount, remaining_amount, total_amount
	  ) VALUES ($1, $2, $3, $4, $5, $6, $7)
	  RETURNING id, advance_payment_status, final_payment_status, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, query,
		a.PatientID,
		a.DoctorID,
		a.Status,
		a.ScheduledAt,
		a.Payment.AdvanceAmount,
		a.Payment.RemainingAmount,
		a.Payment.TotalAmount,
	).Scan(&a.ID, &a.Payment.AdvancePaymentStatus, &a.Payment.FinalPaymentStatus, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return err
	}
	return nil
}

func (s *AppointmentsStore) GetByID(ctx context.Context, appointmentID int64) (*Appointment, error) {
	query := `
	  SELECT ` + appointmentColumns + `
	  FROM appointments a
	  JOIN users p ON p.id = a.patient_id
	  JOIN users d ON d.id = a.doctor_id
	  WHERE a.id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var a Appointment
	err := scanAppointment(s.db.QueryRow(ctx, query, appointmentID), &a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListByUser returns appointments where the user is either party.
func (s *AppointmentsStore) ListByUser(ctx context.Context, userID int64) ([]Appointment, error) {
	query := `
	  SELECT ` + appointmentColumns + `
	  FROM appointments a
	  JOIN users p ON p.id = a.patient_id
	  JOIN users d ON d.id = a.doctor_id
	  WHERE a.patient_id = $1 OR a.doctor_id = $1
	  ORDER BY a.scheduled_at DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		var a Appointment
		if err := scanAppointment(rows, &a); err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

func (s *AppointmentsStore) UpdateStatus(ctx context.Context, appointmentID int64, status string) error {
	query := `UPDATE appointments SET status = $1, updated_at = now() WHERE id = $2`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := s.db.Exec(ctx, query, status, appointmentID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCompletedAppointments flips past confirmed appointments to completed.
// Run periodically from a background goroutine.
func (s *AppointmentsStore) MarkCompletedAppointments(ctx context.Context) (int64, error) {
	query := `
	  UPDATE appointments
	  SET status = 'completed', updated_at = now()
	  WHERE status = 'confirmed' AND scheduled_at < now()
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := s.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
