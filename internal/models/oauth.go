package models

// LoginStart is returned when an OAuth login begins. URL is either a device
// verification page or a direct authorization URL.
type LoginStart struct {
	LoginID         string `json:"login_id"`
	URL             string `json:"url"`
	UserCode        string `json:"user_code,omitempty"`
	ExpiresIn       int    `json:"expires_in,omitempty"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
}
