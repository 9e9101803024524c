package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hospital-app/hospital-client/models"
)

// Appointments lists the current user's appointments
func (c *Client) Appointments(ctx context.Context) ([]models.Appointment, error) {
	var out []models.Appointment
	if err := c.getJSON(ctx, "/api/Appointment", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllAppointments lists every appointment in the system (admin only)
func (c *Client) AllAppointments(ctx context.Context) ([]models.Appointment, error) {
	var out []models.Appointment
	if err := c.getJSON(ctx, "/api/appointment/appointments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAppointment books an appointment with a doctor at the given start
// time (DD-MM-YYYY HH:MM). Conflict checking is the backend's job.
func (c *Client) CreateAppointment(ctx context.Context, req models.NewAppointmentRequest) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/Appointment", nil, req, nil)
}

// UpdateAppointmentStatus sets an appointment's status (owning doctor only)
func (c *Client) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	if !models.ValidStatus(status) {
		return &APIError{Kind: ValidationFailed, Message: fmt.Sprintf("unknown appointment status %q", status)}
	}
	q := url.Values{"status": {string(status)}}
	return c.sendJSON(ctx, http.MethodPut, "/api/Appointment/"+id, q, struct{}{}, nil)
}
