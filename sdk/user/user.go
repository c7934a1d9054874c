// Package user reads the account behind the API key.
package user

import (
	"context"
	"net/http"

	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
)

// User is the authenticated account.
type User struct {
	UserID       string   `json:"userId"`
	Email        string   `json:"email"`
	FeatureFlags []string `json:"featureFlags"`
}

// Service wraps the user endpoint.
type Service struct {
	client *transport.Client
}

// NewService creates a user service.
func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

// Current returns the user owning the API key.
func (s *Service) Current(ctx context.Context) (*User, error) {
	u, err := transport.Do[User](ctx, s.client, http.MethodGet, "/v5/user")
	if err != nil {
		return nil, err
	}
	if u.UserID == "" {
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "invalid user data received")
	}
	if u.FeatureFlags == nil {
		u.FeatureFlags = []string{}
	}
	return &u, nil
}
