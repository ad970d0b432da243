package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/georgemunganga/printa-storefront/internal/remote"
)

// Service defines the upstream identity calls.
type Service interface {
	Login(ctx context.Context, c remote.Caller, email, password string) (*User, error)
	RegisterUser(ctx context.Context, c remote.Caller, req RegisterRequest) (*User, error)
	Logout(ctx context.Context, c remote.Caller) error
}

// RegisterRequest holds the sign-up form.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role,omitempty"`
}

// ErrMissingUser is returned when the upstream accepted a login but sent no identity.
var (
	ErrMissingUser        = errors.New("user: upstream response carried no user")
	ErrMissingCredentials = errors.New("user: email and password are required")
)

type service struct{}

// NewService creates a new user service.
func NewService() Service { return &service{} }

func (s *service) Login(ctx context.Context, c remote.Caller, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	var raw json.RawMessage
	body := map[string]string{"email": email, "password": password}
	if err := c.Call(ctx, remote.EPLogin, nil, body, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

func (s *service) RegisterUser(ctx context.Context, c remote.Caller, req RegisterRequest) (*User, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}
	if req.Role == "" {
		req.Role = RoleCustomer
	}
	var raw json.RawMessage
	if err := c.Call(ctx, remote.EPRegister, nil, req, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

func (s *service) Logout(ctx context.Context, c remote.Caller) error {
	return c.Call(ctx, remote.EPLogout, nil, nil, nil)
}

// decodeUser reads {"user": {...}}, {"data": {...}} or a bare user object.
func decodeUser(raw json.RawMessage) (*User, error) {
	var wrapped struct {
		User *User `json:"user"`
		Data *User `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("user: decoding identity: %w", err)
	}
	for _, u := range []*User{wrapped.User, wrapped.Data} {
		if u != nil && !u.IsZero() {
			return u, nil
		}
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("user: decoding identity: %w", err)
	}
	if u.IsZero() {
		return nil, ErrMissingUser
	}
	return &u, nil
}
