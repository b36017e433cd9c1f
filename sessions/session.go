package sessions

// Profile is the signed-in user's record as returned by GET users/me.
type Profile struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Username    string `json:"username,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Email       string `json:"email,omitempty"`
}

// DisplayName prefers the full name, then the username, then the phone number
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	switch {
	case p.FirstName != "" || p.LastName != "":
		if p.FirstName == "" || p.LastName == "" {
			return p.FirstName + p.LastName
		}
		return p.FirstName + " " + p.LastName
	case p.Username != "":
		return p.Username
	default:
		return p.PhoneNumber
	}
}

// Session is an immutable snapshot of the process-wide authentication state.
// Authenticated and "profile loaded" are tracked separately: Authenticated may be
// true while Profile is nil if the profile fetch is in flight or failed.
type Session struct {
	Authenticated bool
	Profile       *Profile
}

// HasProfile reports whether a profile has been loaded for this session
func (s Session) HasProfile() bool {
	return s.Profile != nil
}
