package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Users interface {
		Create(context.Context, *User) error
		GetByID(context.Context, int64) (*User, error)
		GetByEmail(context.Context, string) (*User, error)
	}
	Appointments interface {
		Create(context.Context, *Appointment) error
		GetByID(context.Context, int64) (*Appointment, error)
		ListByUser(context.Context, int64) ([]Appointment, error)
		UpdateStatus(ctx context.Context, appointmentID int64, status string) error
		MarkCompletedAppointments(context.Context) (int64, error)
	}
	Payments interface {
		SetOrderID(ctx context.Context, appointmentID int64, orderID string) error
		MarkPhasePaid(ctx context.Context, appointmentID int64, phase, paymentID string) error
		MarkPhaseFailed(ctx context.Context, appointmentID int64, phase string) error
		History(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, int, error)
		TotalRevenue(context.Context) (int64, error)
	}
}

func NewStorage(db *pgxpool.Pool) Storage {
	return Storage{
		Users:        &UsersStore{db},
		Appointments: &AppointmentsStore{db},
		Payments:     &PaymentsStore{db},
	}
}
