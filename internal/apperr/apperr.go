// Package apperr defines the error taxonomy shared by the checkout, webhook
// and entitlement paths, and how each kind maps onto an HTTP response.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrSignatureInvalid    = errors.New("signature verification failed")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// Kind represents the category of error
type Kind string

const (
	KindConfiguration       Kind = "configuration"
	KindInvalidRequest      Kind = "invalid_request"
	KindSignatureInvalid    Kind = "signature_verification_failed"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindStoreUnavailable    Kind = "store_unavailable"
	KindInternal            Kind = "internal"
)

type Error struct {
	Kind      Kind
	Op        string // operation that failed, e.g. "checkout.create"
	Code      string // machine readable code returned to callers
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind. errors.Is keeps unwrapping otherwise.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrInvalidRequest:
		return e.Kind == KindInvalidRequest
	case ErrSignatureInvalid:
		return e.Kind == KindSignatureInvalid
	case ErrProviderUnavailable:
		return e.Kind == KindProviderUnavailable
	case ErrStoreUnavailable:
		return e.Kind == KindStoreUnavailable
	}
	return false
}

func New(kind Kind, op, code string, err error) *Error {
	return &Error{
		Kind:      kind,
		Op:        op,
		Code:      code,
		Err:       err,
		Retryable: kind == KindProviderUnavailable || kind == KindStoreUnavailable,
	}
}

// Configuration reports missing settings by name. Setting values must never be passed here.
func Configuration(op string, missing ...string) *Error {
	return New(KindConfiguration, op, "missing_configuration",
		fmt.Errorf("not configured: %s", strings.Join(missing, ", ")))
}

func InvalidRequest(op, code string) *Error {
	return New(KindInvalidRequest, op, code, nil)
}

func SignatureInvalid(op string, err error) *Error {
	return New(KindSignatureInvalid, op, "invalid_signature", err)
}

func ProviderUnavailable(op string, err error) *Error {
	return New(KindProviderUnavailable, op, "provider_unavailable", err)
}

func StoreUnavailable(op string, err error) *Error {
	return New(KindStoreUnavailable, op, "store_unavailable", err)
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the caller-facing code for err, "internal_error" for untyped errors.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return "internal_error"
}

func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidRequest, KindSignatureInvalid:
		return http.StatusBadRequest
	case KindProviderUnavailable:
		return http.StatusBadGateway
	case KindConfiguration, KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
