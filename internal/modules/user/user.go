package user

import "encoding/json"

// Role decides which dashboard a user sees.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

// User is the authenticated identity cached for a session.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      Role   `json:"role"`
}

// IsZero reports whether no user is set.
func (u User) IsZero() bool { return u.ID == "" }

// UnmarshalJSON accepts "_id" and the camelCase name fields the upstream sends.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string `json:"id"`
		MongoID    string `json:"_id"`
		Email      string `json:"email"`
		FirstName  string `json:"first_name"`
		FirstCamel string `json:"firstName"`
		LastName   string `json:"last_name"`
		LastCamel  string `json:"lastName"`
		Role       string `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User{
		ID:        or(raw.ID, raw.MongoID),
		Email:     raw.Email,
		FirstName: or(raw.FirstName, raw.FirstCamel),
		LastName:  or(raw.LastName, raw.LastCamel),
		Role:      Role(raw.Role),
	}
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	return nil
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
