package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"arogya/internal/store"

	"github.com/go-chi/chi/v5"
)

type CreateAppointmentPayload struct {
	DoctorID      int64     `json:"doctor_id" validate:"required"`
	ScheduledAt   time.Time `json:"scheduled_at" validate:"required"`
	TotalAmount   int64     `json:"total_amount" validate:"required,gt=0"`
	AdvanceAmount int64     `json:"advance_amount" validate:"required,gt=0"`
}

// createAppointmentHandler godoc
//
//	@Summary		Book an appointment
//	@Description	Books an appointment with a doctor. The payment record is split into an advance and a remaining installment.
//	@Tags			appointments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateAppointmentPayload	true	"Appointment details"
//	@Success		201		{object}	store.Appointment
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/appointments [post]
func (app *application) createAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload CreateAppointmentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if payload.AdvanceAmount >= payload.TotalAmount {
		app.badRequestResponse(w, r, fmt.Errorf("advance amount must be less than total amount"))
		return
	}

	if payload.ScheduledAt.Before(time.Now()) {
		app.badRequestResponse(w, r, fmt.Errorf("scheduled time must be in the future"))
		return
	}

	doctor, err := app.store.Users.GetByID(r.Context(), payload.DoctorID)
	if err != nil {
		switch err {
		case store.ErrNotFound:
			app.notFoundResponse(w, r, fmt.Errorf("doctor not found"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}
	if doctor.Role != store.RoleDoctor {
		app.badRequestResponse(w, r, fmt.Errorf("user %d is not a doctor", doctor.ID))
		return
	}

	appointment := &store.Appointment{
		PatientID:   user.ID,
		DoctorID:    doctor.ID,
		Status:      store.AppointmentPending,
		ScheduledAt: payload.ScheduledAt,
		Payment: store.Payment{
			AdvanceAmount:   payload.AdvanceAmount,
			RemainingAmount: payload.TotalAmount - payload.AdvanceAmount,
			TotalAmount:     payload.TotalAmount,
		},
	}

	if err := app.store.Appointments.Create(r.Context(), appointment); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	appointment.PatientName = user.Name
	appointment.DoctorName = doctor.Name

	if err := app.jsonResponse(w, http.StatusCreated, "appointment booked", appointment); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listAppointmentsHandler godoc
//
//	@Summary		List own appointments
//	@Description	Returns appointments where the caller is the patient or the doctor.
//	@Tags			appointments
//	@Produce		json
//	@Success		200	{array}		store.Appointment
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/appointments [get]
func (app *application) listAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	appointments, err := app.store.Appointments.ListByUser(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if appointments == nil {
		appointments = []store.Appointment{}
	}

	if err := app.jsonResponse(w, http.StatusOK, "appointments fetched", appointments); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getAppointmentHandler godoc
//
//	@Summary		Get one appointment
//	@Description	Returns a single appointment. Only the patient, the doctor or an admin may view it.
//	@Tags			appointments
//	@Produce		json
//	@Param			appointmentID	path		int	true	"Appointment ID"
//	@Success		200				{object}	store.Appointment
//	@Failure		400				{object}	error
//	@Failure		403				{object}	error
//	@Failure		404				{object}	error
//	@Failure		500				{object}	error
//	@Security		ApiKeyAuth
//	@Router			/appointments/{appointmentID} [get]
func (app *application) getAppointmentHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := app.jsonResponse(w, http.StatusOK, "appointment fetched", appointment); err != nil {
		app.internalServerError(w, r, err)
	}
}

// canAccessAppointment reports whether the user is a party to the appointment
// or an administrator.
func canAccessAppointment(user *store.User, a *store.Appointment) bool {
	return user.ID == a.PatientID || user.ID == a.DoctorID || user.Role == store.RoleAdmin
}
