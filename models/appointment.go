package models

// AppointmentStatus is the scheduling state of an appointment
type AppointmentStatus string

// Appointment statuses as stored by the backend
const (
	StatusPending  AppointmentStatus = "PENDING"
	StatusAccepted AppointmentStatus = "ACCEPTED"
	StatusRejected AppointmentStatus = "REJECTED"
)

// ValidStatus reports whether s is one of the recognized appointment statuses
func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Appointment holds the structure for an appointment as returned by the
// appointment endpoints
type Appointment struct {
	ID             string            `json:"id"`
	PatientID      string            `json:"patientId"`
	DoctorID       string            `json:"doctorId"`
	PatientName    string            `json:"patientName"`
	PatientSurname string            `json:"patientSurname"`
	DoctorName     string            `json:"doctorName"`
	DoctorSurname  string            `json:"doctorSurname"`
	StartTime      Clock             `json:"startTime"`
	EndTime        Clock             `json:"endTime"`
	Status         AppointmentStatus `json:"status"`
}

// NewAppointmentRequest is the payload for creating an appointment
type NewAppointmentRequest struct {
	StartTime string `json:"startTime"`
	DoctorID  string `json:"doctorId"`
}
