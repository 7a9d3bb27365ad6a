package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AccessAction represents the kind of admin access being recorded
type AccessAction string

const (
	AccessActionRedirectLogin   AccessAction = "gate_redirect_login"
	AccessActionRedirectDefault AccessAction = "gate_redirect_default"
	AccessActionLoginSucceeded  AccessAction = "login_succeeded"
	AccessActionLoginFailed     AccessAction = "login_failed"
	AccessActionLogout          AccessAction = "logout"
	AccessActionAPIDenied       AccessAction = "api_denied"
)

// AccessEvent is one entry of the admin access trail
type AccessEvent struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Action     AccessAction    `json:"action" db:"action"`
	Path       string          `json:"path" db:"path"`
	Subject    *string         `json:"subject,omitempty" db:"subject"`
	Email      *string         `json:"email,omitempty" db:"email"`
	Role       *string         `json:"role,omitempty" db:"role"`
	RedirectTo *string         `json:"redirect_to,omitempty" db:"redirect_to"`
	TokenState string          `json:"token_state" db:"token_state"` // absent, invalid or valid
	Details    json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	RequestID  string          `json:"request_id" db:"request_id"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// Token states observed by the gate
const (
	TokenAbsent  = "absent"
	TokenInvalid = "invalid"
	TokenValid   = "valid"
)

// NewAccessEvent creates a new AccessEvent instance
func NewAccessEvent(action AccessAction, path string) *AccessEvent {
	return &AccessEvent{
		ID:         uuid.New(),
		Action:     action,
		Path:       path,
		TokenState: TokenAbsent,
		Timestamp:  time.Now().UTC(),
	}
}

// WithIdentity sets the verified identity. Empty values are left unset.
func (e *AccessEvent) WithIdentity(subject, email, role string) *AccessEvent {
	e.Subject = optional(subject)
	e.Email = optional(email)
	e.Role = optional(role)
	e.TokenState = TokenValid
	return e
}

// WithTokenState records whether a session token was present and valid
func (e *AccessEvent) WithTokenState(state string) *AccessEvent {
	e.TokenState = state
	return e
}

// WithRedirect sets where the request was sent
func (e *AccessEvent) WithRedirect(target string) *AccessEvent {
	e.RedirectTo = optional(target)
	return e
}

// WithDetails sets the details
func (e *AccessEvent) WithDetails(details interface{}) *AccessEvent {
	if data, err := json.Marshal(details); err == nil {
		e.Details = data
	}
	return e
}

// WithRequest sets request metadata
func (e *AccessEvent) WithRequest(requestID, ipAddress, userAgent string) *AccessEvent {
	e.RequestID = requestID
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
