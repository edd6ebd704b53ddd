package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arogya/internal/mailer"
	"arogya/internal/params"
	"arogya/internal/payments"
	"arogya/internal/store"

	"github.com/go-chi/chi/v5"
)

type CreateOrderPayload struct {
	AppointmentID int64  `json:"appointmentId" validate:"required"`
	PaymentType   string `json:"paymentType" validate:"required"`
}

// OrderResponse carries everything a client needs to render the payment
// prompt without a second round trip.
type OrderResponse struct {
	OrderID       string `json:"orderId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	AppointmentID int64  `json:"appointmentId"`
	PaymentType   string `json:"paymentType"`
	KeyID         string `json:"keyId"`
	PatientName   string `json:"patientName"`
	DoctorName    string `json:"doctorName"`
}

// createOrderHandler godoc
//
//	@Summary		Create a payment order
//	@Description	Requests a gateway order for one phase (advance or remaining) of an appointment's payment.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateOrderPayload	true	"Appointment and phase"
//	@Success		200		{object}	OrderResponse
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/payments/create-order [post]
func (app *application) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload CreateOrderPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	appointment, err := app.store.Appointments.GetByID(r.Context(), payload.AppointmentID)
	if err != nil {
		switch err {
		case store.ErrNotFound:
			app.notFoundResponse(w, r, fmt.Errorf("appointment not found"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	// Only the two parties to the appointment may open a payment.
	if user.ID != appointment.PatientID && user.ID != appointment.DoctorID {
		app.forbiddenResponse(w, r)
		return
	}

	if !store.ValidPhase(payload.PaymentType) {
		app.badRequestResponse(w, r, fmt.Errorf("invalid payment type: %s", payload.PaymentType))
		return
	}

	var amount int64
	switch payload.PaymentType {
	case store.PhaseAdvance:
		if appointment.Payment.AdvancePaymentStatus == store.PaymentStatusPaid {
			app.badRequestResponse(w, r, fmt.Errorf("advance payment is already completed"))
			return
		}
		amount = appointment.Payment.AdvanceAmount
	case store.PhaseRemaining:
		if appointment.Payment.AdvancePaymentStatus != store.PaymentStatusPaid {
			app.badRequestResponse(w, r, fmt.Errorf("advance payment must be completed first"))
			return
		}
		if appointment.Payment.FinalPaymentStatus == store.PaymentStatusPaid {
			app.badRequestResponse(w, r, fmt.Errorf("final payment is already completed"))
			return
		}
		amount = appointment.Payment.RemainingAmount
	}

	receipt := payments.NewReceipt(payload.PaymentType, appointment.ID)

	order, err := app.gateway.CreateOrder(r.Context(), payments.OrderRequest{
		Amount:  amount,
		Receipt: receipt,
	})
	if err != nil {
		app.internalServerError(w, r, fmt.Errorf("failed to create payment order: %w", err))
		return
	}

	// The remote order now exists either way; if we cannot record its handle
	// the client must see an error rather than a dangling order id.
	if err := app.store.Payments.SetOrderID(r.Context(), appointment.ID, order.ID); err != nil {
		app.internalServerError(w, r, fmt.Errorf("order %s created but could not be saved: %w", order.ID, err))
		return
	}

	resp := OrderResponse{
		OrderID:       order.ID,
		Amount:        amount,
		Currency:      order.Currency,
		AppointmentID: appointment.ID,
		PaymentType:   payload.PaymentType,
		KeyID:         app.gateway.KeyID(),
		PatientName:   appointment.PatientName,
		DoctorName:    appointment.DoctorName,
	}

	if err := app.jsonResponse(w, http.StatusOK, "payment order created", resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

type VerifyPaymentPayload struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	AppointmentID     int64  `json:"appointmentId" validate:"required"`
	PaymentType       string `json:"paymentType" validate:"required,oneof=advance remaining"`
}

// verifyPaymentHandler godoc
//
//	@Summary		Verify a payment
//	@Description	Authenticates a client-submitted proof of payment and advances the phase's status to paid.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		VerifyPaymentPayload	true	"Payment proof"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/payments/verify [post]
func (app *application) verifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var payload VerifyPaymentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	// Fail fast: the signature is checked before touching storage, so an
	// invalid proof costs nothing and mutates nothing.
	if !app.gateway.VerifyCheckoutSignature(payload.RazorpayOrderID, payload.RazorpayPaymentID, payload.RazorpaySignature) {
		app.badRequestResponse(w, r, fmt.Errorf("payment verification failed"))
		return
	}

	err := app.store.Payments.MarkPhasePaid(r.Context(), payload.AppointmentID, payload.PaymentType, payload.RazorpayPaymentID)
	if err != nil {
		switch err {
		case store.ErrNotFound:
			app.notFoundResponse(w, r, fmt.Errorf("appointment not found"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Infow("payment verified",
		"appointment_id", payload.AppointmentID,
		"payment_type", payload.PaymentType,
		"payment_id", payload.RazorpayPaymentID,
	)

	// The remaining installment settles the appointment: send the receipt
	// email off-request, failures only get logged.
	if payload.PaymentType == store.PhaseRemaining {
		go app.sendPaymentReceipt(payload.AppointmentID, payload.RazorpayPaymentID)
	}

	resp := map[string]any{
		"paymentId":     payload.RazorpayPaymentID,
		"appointmentId": payload.AppointmentID,
		"paymentType":   payload.PaymentType,
	}

	if err := app.jsonResponse(w, http.StatusOK, "payment verified", resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) sendPaymentReceipt(appointmentID int64, paymentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	appointment, err := app.store.Appointments.GetByID(ctx, appointmentID)
	if err != nil {
		app.logger.Errorw("receipt email: fetch appointment", "appointment_id", appointmentID, "error", err)
		return
	}

	patient, err := app.store.Users.GetByID(ctx, appointment.PatientID)
	if err != nil {
		app.logger.Errorw("receipt email: fetch patient", "appointment_id", appointmentID, "error", err)
		return
	}

	vars := struct {
		PatientName   string
		DoctorName    string
		Amount        int64
		AppointmentID int64
		PaymentID     string
	}{
		PatientName:   appointment.PatientName,
		DoctorName:    appointment.DoctorName,
		Amount:        appointment.Payment.TotalAmount,
		AppointmentID: appointment.ID,
		PaymentID:     paymentID,
	}

	status, err := app.mailer.Send(mailer.PaymentReceiptTemplate, patient.Name, patient.Email, vars)
	if err != nil {
		app.logger.Errorw("error sending receipt email", "appointment_id", appointmentID, "error", err)
		return
	}

	app.logger.Infow("receipt email sent", "appointment_id", appointmentID, "status code", status)
}

type PaymentFailurePayload struct {
	AppointmentID int64  `json:"appointmentId" validate:"required"`
	PaymentType   string `json:"paymentType" validate:"required,oneof=advance remaining"`
	Error         string `json:"error"`
}

// paymentFailureHandler godoc
//
//	@Summary		Record a payment failure
//	@Description	Marks one phase of an appointment's payment as failed, based on the client's own report.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		PaymentFailurePayload	true	"Failure report"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/payments/failure [post]
func (app *application) paymentFailureHandler(w http.ResponseWriter, r *http.Request) {
	var payload PaymentFailurePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err := app.store.Payments.MarkPhaseFailed(r.Context(), payload.AppointmentID, payload.PaymentType)
	if err != nil {
		switch err {
		case store.ErrNotFound:
			app.notFoundResponse(w, r, fmt.Errorf("appointment not found"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Warnw("payment failure recorded",
		"appointment_id", payload.AppointmentID,
		"payment_type", payload.PaymentType,
		"client_error", payload.Error,
	)

	if err := app.jsonResponse(w, http.StatusOK, "payment failure recorded", map[string]any{
		"appointmentId": payload.AppointmentID,
		"paymentType":   payload.PaymentType,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// paymentDetailsHandler godoc
//
//	@Summary		Payment details for an appointment
//	@Description	Returns the embedded payment record and appointment status. Restricted to the patient, the doctor or an admin.
//	@Tags			payments
//	@Produce		json
//	@Param			appointmentID	path		int	true	"Appointment ID"
//	@Success		200				{object}	map[string]any
//	@Failure		400				{object}	error
//	@Failure		403				{object}	error
//	@Failure		404				{object}	error
//	@Failure		500				{object}	error
//	@Security		ApiKeyAuth
//	@Router			/payments/payment-details/{appointmentID} [get]
func (app *application) paymentDetailsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	appointmentID, err := strconv.ParseInt(chi.URLParam(r, "appointmentID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid appointment ID"))
		return
	}

	appointment, err := app.store.Appointments.GetByID(r.Context(), appointmentID)
	if err != nil {
		switch err {
		case store.ErrNotFound:
			app.notFoundResponse(w, r, fmt.Errorf("appointment not found"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if !canAccessAppointment(user, appointment) {
		app.forbiddenResponse(w, r)
		return
	}

	resp := map[string]any{
		"payment":           appointment.Payment,
		"appointmentStatus": appointment.Status,
	}

	if err := app.jsonResponse(w, http.StatusOK, "payment details fetched", resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// paymentHistoryHandler godoc
//
//	@Summary		Payment history (admin)
//	@Description	Paginated payment history with optional status, phase and date filters, plus the global paid revenue total.
//	@Tags			payments
//	@Produce		json
//	@Param			status		query		string	false	"payment status filter: unpaid|paid|failed (matches either phase)"
//	@Param			paymentType	query		string	false	"pin the status filter to one phase: advance|remaining"
//	@Param			startDate	query		string	false	"YYYY-MM-DD"
//	@Param			endDate		query		string	false	"YYYY-MM-DD"
//	@Param			page		query		int		false	"Page number (default: 1)"
//	@Param			limit		query		int		false	"Items per page (default: 10, max 100)"
//	@Success		200			{object}	map[string]any
//	@Failure		400			{object}	error
//	@Failure		403			{object}	error
//	@Failure		500			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/payments/payment-history [get]
func (app *application) paymentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if user.Role != store.RoleAdmin {
		app.forbiddenResponse(w, r)
		return
	}

	q := r.URL.Query()

	filter := store.HistoryFilter{
		Status:      strings.TrimSpace(q.Get("status")),
		PaymentType: strings.TrimSpace(q.Get("paymentType")),
	}

	if raw := strings.TrimSpace(q.Get("startDate")); raw != "" {
		t, parseErr := time.Parse("2006-01-02", raw)
		if parseErr != nil {
			app.badRequestResponse(w, r, fmt.Errorf("invalid startDate (must be YYYY-MM-DD): %w", parseErr))
			return
		}
		filter.From = &t
	}
	if raw := strings.TrimSpace(q.Get("endDate")); raw != "" {
		t, parseErr := time.Parse("2006-01-02", raw)
		if parseErr != nil {
			app.badRequestResponse(w, r, fmt.Errorf("invalid endDate (must be YYYY-MM-DD): %w", parseErr))
			return
		}
		filter.To = &t
	}

	pg := params.ParsePagination(q)
	filter.Limit = pg.Limit
	filter.Offset = pg.Offset

	entries, total, err := app.store.Payments.History(r.Context(), filter)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}

	pg.ComputeMeta(total)

	// The revenue figure is the platform-wide paid total on purpose: the
	// report filters never narrow it.
	totalRevenue, err := app.store.Payments.TotalRevenue(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := map[string]any{
		"payments":   entries,
		"pagination": pg,
		"summary": map[string]any{
			"totalRevenue": totalRevenue,
		},
	}

	if err := app.jsonResponse(w, http.StatusOK, "payment history fetched", resp); err != nil {
		app.internalServerError(w, r, err)
	}
}
