package access

// User is a person known to the gatekeeper. Username is the cloud identity
// that receives grants.
type User struct {
	ID       string
	Username string
	Email    string
	IsAdmin  bool
}

// CanDecide reports whether the user may approve or reject requests.
func (u *User) CanDecide() bool {
	return u != nil && u.IsAdmin
}
