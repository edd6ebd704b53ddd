package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"arogya/internal/auth"
	"arogya/internal/payments"
	"arogya/internal/ratelimiter"
	"arogya/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	testCheckoutSecret = "test_checkout_secret"
	testWebhookSecret  = "test_webhook_secret"
)

// mockUsersStore is an in-memory implementation of the users store.
type mockUsersStore struct {
	mu     sync.RWMutex
	users  map[int64]*store.User
	nextID int64
}

func newMockUsersStore() *mockUsersStore {
	return &mockUsersStore{users: make(map[int64]*store.User)}
}

func (m *mockUsersStore) Create(ctx context.Context, user *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrDuplicateEmail
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return nil
}

func (m *mockUsersStore) GetByID(ctx context.Context, userID int64) (*store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (m *mockUsersStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			user := *u
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

// mockAppointmentsStore holds appointments shared with the payments mock so
// phase updates are visible through both.
type mockAppointmentsStore struct {
	mu           sync.RWMutex
	appointments map[int64]*store.Appointment
	nextID       int64
}

func newMockAppointmentsStore() *mockAppointmentsStore {
	return &mockAppointmentsStore{appointments: make(map[int64]*store.Appointment)}
}

func (m *mockAppointmentsStore) Create(ctx context.Context, a *store.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	a.Payment.AdvancePaymentStatus = store.PaymentStatusUnpaid
	a.Payment.FinalPaymentStatus = store.PaymentStatusUnpaid
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	stored := *a
	m.appointments[a.ID] = &stored
	return nil
}

func (m *mockAppointmentsStore) GetByID(ctx context.Context, appointmentID int64) (*store.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[appointmentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	appointment := *a
	return &appointment, nil
}

func (m *mockAppointmentsStore) ListByUser(ctx context.Context, userID int64) ([]store.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.Appointment
	for _, a := range m.appointments {
		if a.PatientID == userID || a.DoctorID == userID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.After(result[j].ScheduledAt) })
	return result, nil
}

func (m *mockAppointmentsStore) UpdateStatus(ctx context.Context, appointmentID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[appointmentID]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *mockAppointmentsStore) MarkCompletedAppointments(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.appointments {
		if a.Status == store.AppointmentConfirmed && a.ScheduledAt.Before(time.Now()) {
			a.Status = store.AppointmentCompleted
			n++
		}
	}
	return n, nil
}

// mockPaymentsStore mutates the shared appointment map the way the SQL store
// mutates the appointment row.
type mockPaymentsStore struct {
	appts *mockAppointmentsStore
}

func (m *mockPaymentsStore) SetOrderID(ctx context.Context, appointmentID int64, orderID string) error {
	m.appts.mu.Lock()
	defer m.appts.mu.Unlock()
	a, ok := m.appts.appointments[appointmentID]
	if !ok {
		return store.ErrNotFound
	}
	a.Payment.OrderID = &orderID
	return nil
}

func (m *mockPaymentsStore) MarkPhasePaid(ctx context.Context, appointmentID int64, phase, paymentID string) error {
	m.appts.mu.Lock()
	defer m.appts.mu.Unlock()
	a, ok := m.appts.appointments[appointmentID]
	if !ok {
		return store.ErrNotFound
	}
	switch phase {
	case store.PhaseAdvance:
		a.Payment.AdvancePaymentStatus = store.PaymentStatusPaid
		a.Payment.PaymentID = &paymentID
	case store.PhaseRemaining:
		a.Payment.FinalPaymentStatus = store.PaymentStatusPaid
	default:
		return fmt.Errorf("unknown payment phase: %s", phase)
	}
	return nil
}

func (m *mockPaymentsStore) MarkPhaseFailed(ctx context.Context, appointmentID int64, phase string) error {
	m.appts.mu.Lock()
	defer m.appts.mu.Unlock()
	a, ok := m.appts.appointments[appointmentID]
	if !ok {
		return store.ErrNotFound
	}
	switch phase {
	case store.PhaseAdvance:
		a.Payment.AdvancePaymentStatus = store.PaymentStatusFailed
	case store.PhaseRemaining:
		a.Payment.FinalPaymentStatus = store.PaymentStatusFailed
	default:
		return fmt.Errorf("unknown payment phase: %s", phase)
	}
	return nil
}

func (m *mockPaymentsStore) History(ctx context.Context, filter store.HistoryFilter) ([]store.HistoryEntry, int, error) {
	m.appts.mu.RLock()
	defer m.appts.mu.RUnlock()

	var matched []store.HistoryEntry
	for _, a := range m.appts.appointments {
		if filter.Status != "" {
			switch filter.PaymentType {
			case store.PhaseAdvance:
				if a.Payment.AdvancePaymentStatus != filter.Status {
					continue
				}
			case store.PhaseRemaining:
				if a.Payment.FinalPaymentStatus != filter.Status {
					continue
				}
			default:
				if a.Payment.AdvancePaymentStatus != filter.Status && a.Payment.FinalPaymentStatus != filter.Status {
					continue
				}
			}
		}
		if filter.From != nil && a.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, store.HistoryEntry{
			AppointmentID:     a.ID,
			PatientName:       a.PatientName,
			DoctorName:        a.DoctorName,
			AppointmentStatus: a.Status,
			Payment:           a.Payment,
			CreatedAt:         a.CreatedAt,
		})
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (m *mockPaymentsStore) TotalRevenue(ctx context.Context) (int64, error) {
	m.appts.mu.RLock()
	defer m.appts.mu.RUnlock()
	var total int64
	for _, a := range m.appts.appointments {
		if a.Payment.FinalPaymentStatus == store.PaymentStatusPaid {
			total += a.Payment.TotalAmount
		}
	}
	return total, nil
}

// mockGateway fakes order creation but delegates both signature checks to the
// real adapter so the HMAC semantics under test are the production ones.
type mockGateway struct {
	mu        sync.Mutex
	verifier  *payments.RazorpayAdapter
	orders    []payments.OrderRequest
	createErr error
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		verifier: payments.NewRazorpayAdapter("rzp_test_key", testCheckoutSecret, testWebhookSecret),
	}
}

func (g *mockGateway) CreateOrder(ctx context.Context, req payments.OrderRequest) (payments.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return payments.Order{}, g.createErr
	}
	g.orders = append(g.orders, req)
	return payments.Order{
		ID:       "order_" + uuid.New().String()[:8],
		Amount:   req.Amount,
		Currency: "INR",
	}, nil
}

func (g *mockGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return g.verifier.VerifyCheckoutSignature(orderID, paymentID, signature)
}

func (g *mockGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return g.verifier.VerifyWebhookSignature(body, signature)
}

func (g *mockGateway) KeyID() string {
	return g.verifier.KeyID()
}

func (g *mockGateway) orderCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.orders)
}

// mockMailer records sends instead of talking SMTP.
type mockMailer struct {
	mu    sync.Mutex
	sends []string
}

func (m *mockMailer) Send(templateFile, username, email string, data any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, email)
	return 200, nil
}

type testStores struct {
	users        *mockUsersStore
	appointments *mockAppointmentsStore
	payments     *mockPaymentsStore
	gateway      *mockGateway
	mailer       *mockMailer
}

func newTestApplication(t *testing.T) (*application, *testStores) {
	t.Helper()

	users := newMockUsersStore()
	appointments := newMockAppointmentsStore()
	paymentsStore := &mockPaymentsStore{appts: appointments}
	gateway := newMockGateway()
	mail := &mockMailer{}

	authenticator := auth.NewJWTAuthenticator(
		"test_secret", "test_refresh_secret",
		time.Hour, time.Hour*24,
		"Arogya", "Arogya",
	)

	app := &application{
		config: config{
			env:         "test",
			rateLimiter: ratelimiter.Config{Enabled: false},
			auth: authConfig{
				basic: basicConfig{user: "admin", pass: "admin"},
			},
		},
		logger:        zap.NewNop().Sugar(),
		store:         store.Storage{Users: users, Appointments: appointments, Payments: paymentsStore},
		gateway:       gateway,
		mailer:        mail,
		authenticator: authenticator,
	}

	return app, &testStores{
		users:        users,
		appointments: appointments,
		payments:     paymentsStore,
		gateway:      gateway,
		mailer:       mail,
	}
}

func seedUser(t *testing.T, users *mockUsersStore, name, email, role string) *store.User {
	t.Helper()
	user := &store.User{Name: name, Email: email, Phone: "9800000000", Role: role}
	if err := user.Password.Set("secret123"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedAppointment(t *testing.T, appts *mockAppointmentsStore, patient, doctor *store.User, advance, remaining int64) *store.Appointment {
	t.Helper()
	a := &store.Appointment{
		PatientID:   patient.ID,
		DoctorID:    doctor.ID,
		PatientName: patient.Name,
		DoctorName:  doctor.Name,
		Status:      store.AppointmentPending,
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Payment: store.Payment{
			AdvanceAmount:   advance,
			RemainingAmount: remaining,
			TotalAmount:     advance + remaining,
		},
	}
	if err := appts.Create(context.Background(), a); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return a
}

func bearerFor(t *testing.T, app *application, user *store.User) string {
	t.Helper()
	accessToken, _, err := app.authenticator.GenerateTokens(user.ID, user.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + accessToken
}
