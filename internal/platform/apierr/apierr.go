package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the `error` field of API error bodies.
const (
	CodeConfigurationMissing    = "configuration_missing"
	CodeProviderRequestFailed   = "provider_request_failed"
	CodeStoreRequestFailed      = "store_request_failed"
	CodePersistenceFailed       = "persistence_failed"
	CodeSessionStoreUnavailable = "session_store_unavailable"
	CodeUnsupportedTopic        = "unsupported_topic"
	CodeInvalidStep             = "invalid_step"
	CodeStepMismatch            = "step_mismatch"
	CodeSessionNotFound         = "session_not_found"
	CodeSessionCompleted        = "session_completed"
	CodeInvalidRequest          = "invalid_request"
	CodeUnauthorized            = "unauthorized"
	CodeForbidden               = "forbidden"
	CodeInternal                = "server_exception"
)

type Error struct {
	Status int
	Code   string
	Err    error

	// UpstreamStatus is the HTTP status returned by the provider or store, when there was one.
	UpstreamStatus int
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

// HasCode reports whether err carries an *Error with the given code.
func HasCode(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

func ConfigurationMissing(err error) *Error {
	return New(http.StatusInternalServerError, CodeConfigurationMissing, err)
}

func ProviderRequestFailed(upstream int, err error) *Error {
	return &Error{Status: http.StatusBadGateway, Code: CodeProviderRequestFailed, Err: err, UpstreamStatus: upstream}
}

func StoreRequestFailed(upstream int, err error) *Error {
	return &Error{Status: http.StatusBadGateway, Code: CodeStoreRequestFailed, Err: err, UpstreamStatus: upstream}
}

func PersistenceFailed(upstream int, err error) *Error {
	return &Error{Status: http.StatusBadGateway, Code: CodePersistenceFailed, Err: err, UpstreamStatus: upstream}
}

func SessionStoreUnavailable(err error) *Error {
	return New(http.StatusServiceUnavailable, CodeSessionStoreUnavailable, err)
}

func UnsupportedTopic(err error) *Error {
	return New(http.StatusBadRequest, CodeUnsupportedTopic, err)
}

func InvalidStep(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidStep, err)
}

func StepMismatch(err error) *Error {
	return New(http.StatusConflict, CodeStepMismatch, err)
}

func SessionNotFound(err error) *Error {
	return New(http.StatusNotFound, CodeSessionNotFound, err)
}

func SessionCompleted(err error) *Error {
	return New(http.StatusConflict, CodeSessionCompleted, err)
}

func InvalidRequest(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidRequest, err)
}

func Unauthorized(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, err)
}

func Forbidden(err error) *Error {
	return New(http.StatusForbidden, CodeForbidden, err)
}
