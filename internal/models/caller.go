package models

// Caller is the authenticated identity a request acts as.
type Caller struct {
	UserID       int
	Role         Role
	Municipality string
}

func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Owns reports whether the caller authored something written by authorID.
func (c *Caller) Owns(authorID int) bool {
	return c != nil && c.UserID == authorID
}
