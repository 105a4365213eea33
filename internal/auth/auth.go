// Package auth implements the OTP login flow shared by the portals:
// request a one-time password for a phone number, verify it, and persist
// the returned identity into the session store.
package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"threadly/internal/api"
	"threadly/internal/model"
	"threadly/internal/session"
)

// Backend endpoints for the login flow.
const (
	authenticatePath = "/api/authenticate"
	verifyOTPPath    = "/api/verify-otp"
)

// Flow drives the two-step OTP login against the backend and stores the
// resulting identity.
type Flow struct {
	client   *api.Client
	sessions *session.Store
}

// New creates a login flow over the given client and session store.
func New(client *api.Client, sessions *session.Store) *Flow {
	return &Flow{client: client, sessions: sessions}
}

// verifyResponse is the backend's shape on successful OTP verification.
// Cookie portals get the session cookie out-of-band; Token is only present
// for bearer portals.
type verifyResponse struct {
	Token string `json:"token,omitempty"`
	User  struct {
		ID    string `json:"id"`
		Role  string `json:"role"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"user"`
}

// RequestOTP asks the backend to send a one-time password to phone.
func (f *Flow) RequestOTP(ctx context.Context, phone string) error {
	if phone == "" {
		return model.NewValidationError("phone", "phone number is required")
	}

	resp, err := f.client.Post(ctx, authenticatePath, map[string]string{"phone": phone}, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return api.DecodeError(resp)
	}
	resp.Body.Close()
	return nil
}

// VerifyOTP submits the code. On success the returned identity (and token,
// for bearer portals) is persisted into the session store; on a cookie
// portal the session cookie lands in the client's jar automatically.
func (f *Flow) VerifyOTP(ctx context.Context, phone, code string) (model.Session, error) {
	if code == "" {
		return model.Session{}, model.NewValidationError("otp", "code is required")
	}

	resp, err := f.client.Post(ctx, verifyOTPPath,
		map[string]string{"phone": phone, "otp": code}, nil)
	if err != nil {
		return model.Session{}, err
	}
	if resp.StatusCode >= 400 {
		return model.Session{}, api.DecodeError(resp)
	}
	defer resp.Body.Close()

	var verified verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verified); err != nil {
		return model.Session{}, fmt.Errorf("parsing verify-otp response: %w", err)
	}

	sess := model.Session{
		UserID:   verified.User.ID,
		Username: verified.User.Name,
		Email:    verified.User.Email,
		Phone:    verified.User.Phone,
	}
	if role := model.Role(verified.User.Role); role.Valid() {
		sess.Role = role
	}

	if err := f.sessions.SaveIdentity(ctx, sess, verified.Token); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// Logout delegates to the session store's full teardown.
func (f *Flow) Logout(ctx context.Context) error {
	return f.sessions.Logout(ctx)
}
