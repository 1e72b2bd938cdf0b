package model

// User is the identity a bearer token resolves to.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}
