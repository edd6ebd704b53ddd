package main

import (
	"context"
	"time"
)

func (app *application) markCompletedAppointmentsEvery30Mins() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		// Run once immediately
		app.markCompletedAppointments()

		// Then run every 30 minutes
		for range ticker.C {
			app.markCompletedAppointments()
		}
	}()
}

func (app *application) markCompletedAppointments() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := app.store.Appointments.MarkCompletedAppointments(ctx)
	if err != nil {
		app.logger.Errorf("Error marking appointments as completed: %v", err)
		return
	}
	if n > 0 {
		app.logger.Infof("Marked %d appointments as completed at %s", n, time.Now().Format(time.RFC1123))
	}
}
