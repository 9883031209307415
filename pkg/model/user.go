package model

// User is the identity attached to a request by the auth gateway.
// The service treats it as opaque and uses only ID for ownership checks.
type User struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
}
