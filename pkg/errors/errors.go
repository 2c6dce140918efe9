package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes
const (
	CodeDashboard = "DASHBOARD_ERROR"
	CodeUser      = "USER_ERROR"
	CodeTransport = "TRANSPORT_ERROR"
	CodeServer    = "SERVER_ERROR"
	CodeContract  = "CONTRACT_ERROR"
	CodeConsumer  = "CONSUMER_ERROR"
	CodeCache     = "CACHE_ERROR"
	CodeService   = "SERVICE_ERROR"
)

type DashboardError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *DashboardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DashboardError) Unwrap() error {
	return e.Cause
}

func NewDashboardError(message, code string, statusCode int, context map[string]any) *DashboardError {
	return &DashboardError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Context:    context,
	}
}

func (e *DashboardError) WithCause(cause error) *DashboardError {
	e.Cause = cause
	return e
}

// UserError is raised before any network call when the user has not supplied
// what the operation needs (for example no file selected).
type UserError struct {
	*DashboardError
}

func NewUserError(message string) *UserError {
	return &UserError{
		DashboardError: &DashboardError{
			Message:    message,
			Code:       CodeUser,
			StatusCode: 400,
		},
	}
}

type TransportError struct {
	*DashboardError
	URL string
}

func NewTransportError(message, url string, cause error) *TransportError {
	return &TransportError{
		DashboardError: &DashboardError{
			Message:    message,
			Code:       CodeTransport,
			StatusCode: 503,
			Context: map[string]any{
				"url": url,
			},
			Cause: cause,
		},
		URL: url,
	}
}

// ServerError carries a non-2xx response together with the error text the
// server sent back.
type ServerError struct {
	*DashboardError
	Body string
}

func NewServerError(statusCode int, body, url string) *ServerError {
	return &ServerError{
		DashboardError: &DashboardError{
			Message:    fmt.Sprintf("Server error: %d - %s", statusCode, body),
			Code:       CodeServer,
			StatusCode: statusCode,
			Context: map[string]any{
				"url":  url,
				"body": body,
			},
		},
		Body: body,
	}
}

type ContractError struct {
	*DashboardError
	Field string
}

func NewContractError(message, field string, cause error) *ContractError {
	return &ContractError{
		DashboardError: &DashboardError{
			Message:    message,
			Code:       CodeContract,
			StatusCode: 502,
			Context: map[string]any{
				"field": field,
			},
			Cause: cause,
		},
		Field: field,
	}
}

// ConsumerError wraps a failure raised inside a subscriber or listener
// callback. It is logged, never propagated to the writer.
type ConsumerError struct {
	*DashboardError
	Key string
}

func NewConsumerError(key string, recovered any) *ConsumerError {
	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("%v", recovered)
	}
	return &ConsumerError{
		DashboardError: &DashboardError{
			Message:    "consumer callback failed",
			Code:       CodeConsumer,
			StatusCode: 500,
			Context: map[string]any{
				"key": key,
			},
			Cause: cause,
		},
		Key: key,
	}
}

type CacheError struct {
	*DashboardError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		DashboardError: &DashboardError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

type ServiceError struct {
	*DashboardError
	Service   string
	Operation string
}

func NewServiceError(message, service, operation string, cause error) *ServiceError {
	return &ServiceError{
		DashboardError: &DashboardError{
			Message:    message,
			Code:       CodeService,
			StatusCode: 500,
			Context: map[string]any{
				"service":   service,
				"operation": operation,
			},
			Cause: cause,
		},
		Service:   service,
		Operation: operation,
	}
}

// ErrCode exposes the taxonomy code; promoted to every typed wrapper.
func (e *DashboardError) ErrCode() string {
	return e.Code
}

// Code returns the taxonomy code of err, or CodeDashboard when err is not one
// of ours.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ ErrCode() string }
	if stderrors.As(err, &coded) {
		return coded.ErrCode()
	}
	return CodeDashboard
}

// UserMessage renders any failure as the single line shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Analysis failed: %s", err.Error())
}
