// Package herrors defines the pipeline-level error taxonomy: ServiceError,
// MiddlewareError, BackendError and ConfigError. The executor never retries;
// it classifies once at the boundary and lets adapters map the category to a
// wire-level status.
package herrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ServiceError indicates a service (endpoint or backend) implementation
// failure that is not itself a backend-connectivity problem.
type ServiceError struct {
	Service string
	cause   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error (%s): %v", e.Service, e.cause)
}

func (e *ServiceError) Unwrap() error { return e.cause }

// NewServiceError wraps cause with stack context and tags it with the
// offending service name.
func NewServiceError(service string, cause error) *ServiceError {
	return &ServiceError{Service: service, cause: errors.WithStack(cause)}
}

// MiddlewareError indicates a middleware's left/right hook failed.
// AuthFailure nests a separate marker so the HTTP adapter can distinguish
// authentication/authorization failures from generic middleware errors
// (spec §7: "auth-specific failures are distinguished by a nested
// AuthFailure marker").
type MiddlewareError struct {
	Middleware string
	Auth       bool
	cause      error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware error (%s): %v", e.Middleware, e.cause)
}

func (e *MiddlewareError) Unwrap() error { return e.cause }

// IsAuthFailure reports whether this middleware error represents an
// authentication/authorization rejection rather than a structural fault.
func (e *MiddlewareError) IsAuthFailure() bool { return e.Auth }

// NewMiddlewareError wraps a generic middleware failure.
func NewMiddlewareError(name string, cause error) *MiddlewareError {
	return &MiddlewareError{Middleware: name, cause: errors.WithStack(cause)}
}

// NewAuthFailure wraps an authentication/authorization rejection.
func NewAuthFailure(name string, cause error) *MiddlewareError {
	return &MiddlewareError{Middleware: name, Auth: true, cause: errors.WithStack(cause)}
}

// BackendError indicates the terminal backend stage failed or could not be
// reached.
type BackendError struct {
	Backend string
	cause   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error (%s): %v", e.Backend, e.cause)
}

func (e *BackendError) Unwrap() error { return e.cause }

// NewBackendError wraps a backend-stage failure.
func NewBackendError(backend string, cause error) *BackendError {
	return &BackendError{Backend: backend, cause: errors.WithStack(cause)}
}

// ConfigError indicates a reference to configuration that does not exist,
// either at startup (fatal) or at request time (mapped to 500 / 0x0110).
type ConfigError struct {
	Detail string
	cause  error
}

func (e *ConfigError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("config error: %s: %v", e.Detail, e.cause)
	}
	return fmt.Sprintf("config error: %s", e.Detail)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// NewConfigError builds a ConfigError from a detail message.
func NewConfigError(detail string) *ConfigError {
	return &ConfigError{Detail: detail, cause: errors.New(detail)}
}

// WrapConfigError builds a ConfigError wrapping an underlying cause.
func WrapConfigError(detail string, cause error) *ConfigError {
	return &ConfigError{Detail: detail, cause: errors.WithMessage(cause, detail)}
}
