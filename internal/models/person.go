// Package models defines the kiosk data models: roster people and
// attendance sessions.
package models

// Person is one enrollable individual loaded from the roster.
// Values are immutable once loaded.
type Person struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IDNumber    string `json:"id_number"`
	Affiliation string `json:"affiliation"`
	DateOfBirth string `json:"date_of_birth"`
	// UniqueID is the QR payload value. Unique across the roster.
	UniqueID  string `json:"unique_id"`
	CreatedAt string `json:"created_at"`
}

// FullName returns "First Last", the form used in operator messages.
func (p Person) FullName() string {
	return p.FirstName + " " + p.LastName
}
