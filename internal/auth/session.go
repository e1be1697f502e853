package auth

import "time"

// GuestID identifies every guest session. Guests are never persisted.
const GuestID = "guest"

// Session is the authenticated caller.
type Session struct {
	DoctorID  string    `json:"doctorId"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	License   string    `json:"license,omitempty"`
	Guest     bool      `json:"guest"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// GuestSession returns a session that may use every offline feature but
// never writes patient records.
func GuestSession() Session {
	return Session{DoctorID: GuestID, Name: "Convidado", Guest: true}
}

// IsGuest reports whether the session belongs to a guest.
func (s Session) IsGuest() bool {
	return s.Guest || s.DoctorID == "" || s.DoctorID == GuestID
}
