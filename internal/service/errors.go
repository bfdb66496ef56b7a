package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrMagicLinkInvalid   = errors.New("magic link invalid")
	ErrMagicLinkExpired   = errors.New("magic link expired or used")
	ErrGoogleTokenInvalid = errors.New("google access token invalid")
	ErrGoogleEmailMissing = errors.New("google profile without email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInactive    = errors.New("session is no longer active")
	ErrProjectNotFound    = errors.New("project not found")
	ErrInvalidPage        = errors.New("invalid page")
	ErrStorageDisabled    = errors.New("object storage not configured")
)

// ValidationError agrupa errores por campo; se serializa como {"campo": ["msg"]}.
type ValidationError struct {
	Fields map[string][]string
}

func newValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], msg)
}

func (v *ValidationError) Empty() bool {
	return v == nil || len(v.Fields) == 0
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// AsValidationError extrae un *ValidationError de la cadena de errores.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
