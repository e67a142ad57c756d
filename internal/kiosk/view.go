package kiosk

import "github.com/dmitrijs2005/qrkiosk/internal/models"

type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateVerified    State = "verified"
	StateNotVerified State = "not-verified"
)

// StoreMode mirrors session store availability.
type StoreMode string

const (
	StoreOnline   StoreMode = "online"
	StoreOffline  StoreMode = "offline"
	StoreDisabled StoreMode = "disabled"
)

// View is a snapshot of the kiosk. Person is set only in StateVerified,
// ScanText only in StateNotVerified.
type View struct {
	State      State          `json:"state"`
	Generation uint64         `json:"generation"`
	Person     *models.Person `json:"person,omitempty"`
	ScanText   string         `json:"scan_text,omitempty"`

	// LoggedIn is the attendance status of Person.
	LoggedIn bool `json:"logged_in"`
	Busy     bool `json:"busy"`

	Store          StoreMode `json:"store"`
	StoreConnected bool      `json:"store_connected"`

	// Message is the last operator-facing outcome; Error marks failures.
	Message string `json:"message,omitempty"`
	Error   bool   `json:"error,omitempty"`
}

func (v View) clone() View {
	if v.Person != nil {
		p := *v.Person
		v.Person = &p
	}
	return v
}
