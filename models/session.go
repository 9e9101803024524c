package models

// Role is the backend-assigned role carried in the credential claims
type Role string

// Roles recognized by the backend. "member" is the claim value the backend
// uses for patients.
const (
	RolePatient Role = "member"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Session holds the resolved identity for the current credential. It is
// owned by the session context and read-only everywhere else.
type Session struct {
	SubjectID  string
	Role       Role
	Credential string
}
