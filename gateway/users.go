package gateway

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/hospital-app/hospital-client/models"
)

// Doctors lists all doctors
func (c *Client) Doctors(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := c.getJSON(ctx, "/api/User/doctors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Patients lists all patients
func (c *Client) Patients(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := c.getJSON(ctx, "/api/User/patients", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddDoctor creates a doctor account (admin only)
func (c *Client) AddDoctor(ctx context.Context, doctor models.User, password string) error {
	body := map[string]string{
		"name":        doctor.Name,
		"surname":     doctor.Surname,
		"email":       doctor.Email,
		"description": doctor.Description,
		"password":    password,
	}
	return c.sendJSON(ctx, http.MethodPost, "/api/user/doctor", nil, body, nil)
}

// UpdateDoctor updates a doctor record by ID
func (c *Client) UpdateDoctor(ctx context.Context, id string, req models.UpdateUserRequest) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/user/doctors/"+id, nil, req, nil)
}

// DeleteDoctor removes a doctor by ID
func (c *Client) DeleteDoctor(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/user/doctors/"+id, nil, nil, "", nil)
}

// UpdatePatient updates a patient record by ID
func (c *Client) UpdatePatient(ctx context.Context, id string, req models.UpdateUserRequest) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/user/patients/"+id, nil, req, nil)
}

// DeletePatient removes a patient by ID
func (c *Client) DeletePatient(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/user/patients/"+id, nil, nil, "", nil)
}

// BanUser bans a user. A zero until means a permanent ban; re-banning an
// already banned user overwrites the stored expiry.
func (c *Client) BanUser(ctx context.Context, id string, until time.Time) error {
	var q url.Values
	if !until.IsZero() {
		q = url.Values{"until": {until.UTC().Format(time.RFC3339)}}
	}
	return c.do(ctx, http.MethodPut, "/api/user/ban/"+id, q, nil, "", nil)
}

// UnbanUser lifts a ban. Unbanning a user who is not banned is a no-op on
// the backend.
func (c *Client) UnbanUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/api/user/unban/"+id, nil, nil, "", nil)
}

// Profile fetches the current user's profile
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.getJSON(ctx, "/api/User/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile updates the current user's profile; image is optional.
// Description is only meaningful for doctors, the backend ignores it for
// everyone else.
func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateUserRequest, image *ImageUpload) error {
	fields := map[string]string{
		"name":      req.Name,
		"surname":   req.Surname,
		"email":     req.Email,
		"birthDate": req.BirthDate,
	}
	if req.Description != "" {
		fields["description"] = req.Description
	}
	return c.sendMultipart(ctx, http.MethodPut, "/api/User/update-profile", fields, image, nil)
}
