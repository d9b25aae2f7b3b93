package domain

// Principal is the authenticated caller decoded from a bearer token.
type Principal struct {
	UserID int64
	Role   Role
}

// Is reports whether the principal holds role r.
func (p Principal) Is(r Role) bool {
	return p.Role == r
}
