package user

// Role is the backend role name of a signed-in account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the account owning the current session. It only changes through an
// explicit profile update or a new sign-in.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	IsAdmin bool   `json:"is_admin"`
}

// Clone returns a copy safe to hand out to readers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
