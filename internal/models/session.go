package models

import "time"

// Session is one open or closed attendance window for a unique id.
// A copy of the person's identity is stored so the record survives
// roster changes.
type Session struct {
	ID          string     `json:"id"`
	UniqueID    string     `json:"unique_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IDNumber    string     `json:"id_number"`
	Affiliation string     `json:"affiliation"`
	IsActive    bool       `json:"is_active"`
	LoggedInAt  time.Time  `json:"logged_in_at"`
	LoggedOutAt *time.Time `json:"logged_out_at,omitempty"`
}

// NewSession builds an active session for p opened at t.
func NewSession(p Person, t time.Time) *Session {
	return &Session{
		UniqueID:    p.UniqueID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		IDNumber:    p.IDNumber,
		Affiliation: p.Affiliation,
		IsActive:    true,
		LoggedInAt:  t,
	}
}
