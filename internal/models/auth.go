package models

import "slices"

const RoleAdmin = "ROLE_ADMIN"

type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type UserMe struct {
	ID    int64    `json:"id,omitempty"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

func (u *UserMe) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

// VisitorState is the persisted part of a visitor: the auth token and the booking draft.
type VisitorState struct {
	VisitorID string       `json:"visitor_id"`
	Token     string       `json:"token,omitempty"`
	Draft     BookingDraft `json:"draft"`
}
