package model

import (
	"errors"
	"strings"
)

var (
	ErrMissingFields = errors.New("Missing required fields: projectId, email, role")
	ErrInvalidRole   = errors.New("Invalid role")
)

type InviteRequest struct {
	ProjectID string `json:"projectId"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// Validate checks required fields before the role value.
func (r *InviteRequest) Validate() error {
	if r == nil || strings.TrimSpace(r.ProjectID) == "" || strings.TrimSpace(r.Email) == "" || r.Role == "" {
		return ErrMissingFields
	}

	if !r.Role.Valid() {
		return ErrInvalidRole
	}

	return nil
}

type InviteResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
