package errors

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrAuth        = errors.New("authentication failed")
	ErrParse       = errors.New("failed to parse portal response")
	ErrNetwork     = errors.New("portal unreachable")
	ErrServer      = errors.New("backend failure")
	ErrMaintenance = errors.New("portal in maintenance")

	ErrInvalidClassIndex = errors.New("class index out of range")
	ErrInvalidSubject    = errors.New("subject index out of range")
	ErrTokenNotFound     = errors.New("token does not exist")
	ErrInvalidLeadTime   = errors.New("invalid reminder lead time")
	ErrInvalidSetting    = errors.New("invalid setting")
)

// API error codes returned to clients.
const (
	CodeInvalidCredentials = "E_INVALID_CREDENTIALS"
	CodeTokenNonexistent   = "E_TOKEN_NONEXISTENT"
	CodeParseFailed        = "E_PARSE_FAILED"
	CodeNetwork            = "E_NETWORK"
	CodeDatabase           = "E_DATABASE_CONNECTION_FAILED"
	CodeMaintenance        = "E_MAINTENANCE"
	CodeUnknown            = "E_UNKNOWN"
)

// AuthError reports credentials rejected by the portal. The portal answers
// with 200 on failed logins, so Phrase holds the matched body text.
type AuthError struct {
	Reason string
	Phrase string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// ParseError reports markup that did not match the expected shape.
type ParseError struct {
	Kind    string
	Field   string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse %s", e.Field)
	if e.Kind != "" {
		msg = fmt.Sprintf("failed to parse %s.%s", e.Kind, e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Truncate shortens s to at most limit bytes without splitting a UTF-8
// sequence.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

type NetworkError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("request to %s timed out", e.URL)
	case e.StatusCode != 0:
		return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("request to %s failed: %s", e.URL, e.Err.Error())
	}
	return fmt.Sprintf("request to %s failed", e.URL)
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a failure of our own backing services, surfaced with an API
// error code.
type ServerError struct {
	Code string
	Err  error
}

func (e *ServerError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("server error %s", e.Code)
	}
	return fmt.Sprintf("server error %s: %s", e.Code, e.Err.Error())
}

func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

type MaintenanceError struct {
	URL string
}

func (e *MaintenanceError) Error() string {
	return fmt.Sprintf("portal is in maintenance (%s)", e.URL)
}

func (e *MaintenanceError) Is(target error) bool {
	return target == ErrMaintenance
}

func NewDatabaseError(err error) error {
	return &ServerError{Code: CodeDatabase, Err: err}
}

func IsAuth(err error) bool        { return errors.Is(err, ErrAuth) }
func IsParse(err error) bool       { return errors.Is(err, ErrParse) }
func IsNetwork(err error) bool     { return errors.Is(err, ErrNetwork) }
func IsServer(err error) bool      { return errors.Is(err, ErrServer) }
func IsMaintenance(err error) bool { return errors.Is(err, ErrMaintenance) }

// Unavailable reports errors after which cached data may be served instead.
func Unavailable(err error) bool {
	return IsNetwork(err) || IsMaintenance(err)
}

// Code maps err onto the API error code.
func Code(err error) string {
	var serverErr *ServerError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &serverErr):
		return serverErr.Code
	case IsAuth(err):
		return CodeInvalidCredentials
	case errors.Is(err, ErrTokenNotFound):
		return CodeTokenNonexistent
	case IsMaintenance(err):
		return CodeMaintenance
	case IsNetwork(err):
		return CodeNetwork
	case IsParse(err):
		return CodeParseFailed
	}
	return CodeUnknown
}
