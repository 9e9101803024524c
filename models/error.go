package models

// ErrorResponse is the backend's error body shape
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// HealthCheckResponse is the health endpoint response shape
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
