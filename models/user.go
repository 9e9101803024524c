package models

// User holds the structure for a doctor or patient record as returned by the
// user endpoints
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Email       string `json:"email"`
	Role        string `json:"role,omitempty"`
	Profile     string `json:"profile,omitempty"`
	Description string `json:"description,omitempty"`
	BirthDate   string `json:"birthDate,omitempty"`
	BannedUntil string `json:"bannedUntil,omitempty"`
}

// UpdateUserRequest is the payload for updating a doctor or patient record
type UpdateUserRequest struct {
	Name        string `json:"name,omitempty"`
	Surname     string `json:"surname,omitempty"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description,omitempty"`
	BirthDate   string `json:"birthDate,omitempty"`
}
