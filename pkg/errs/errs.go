// Package errs defines the error taxonomy shared by the metadata service.
// Every failure raised by the query core is an *Error carrying a Kind, a
// numeric code and a message; the HTTP layer maps the Kind to a status code.
package errs

import (
	"errors"
	"fmt"
)

// Service is the service tag written into every error payload.
const Service = "metadata-service"

// Kind classifies an error for handling and transport mapping
type Kind int

const (
	// Internal is any failure that is not one of the kinds below
	Internal Kind = iota
	// MalformedVersion means a version string is not four integer groups
	MalformedVersion
	// RequestValidation means a request parameter failed validation
	RequestValidation
	// StaleDraft means a specific draft was requested that is no longer current
	StaleDraft
	// NotFound means a version document or data structure does not exist
	NotFound
	// InvalidDocumentShape means a stored document lacks expected fields
	InvalidDocumentShape
	// PathNotFound means the requested route does not exist
	PathNotFound
)

// String returns the wire type tag of the kind
func (k Kind) String() string {
	switch k {
	case MalformedVersion, RequestValidation:
		return "REQUEST_VALIDATION_ERROR"
	case StaleDraft:
		return "INVALID_DRAFT_VERSION"
	case NotFound:
		return "DATA_NOT_FOUND"
	case InvalidDocumentShape:
		return "INVALID_STORAGE_FORMAT"
	case PathNotFound:
		return "PATH_NOT_FOUND"
	default:
		return "SYSTEM_ERROR"
	}
}

// Code returns the numeric error code of the kind
func (k Kind) Code() int {
	switch k {
	case MalformedVersion, RequestValidation:
		return 106
	case StaleDraft:
		return 107
	case NotFound:
		return 105
	case InvalidDocumentShape:
		return 108
	case PathNotFound:
		return 103
	default:
		return 202
	}
}

// Error is a tagged failure constructed at the failure site
type Error struct {
	Kind    Kind
	Message string
	// Data identifies the offending input (version, name, file key)
	Data string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the numeric code of the error's kind
func (e *Error) Code() int {
	return e.Kind.Code()
}

// Payload is the structured body written for an error response
type Payload struct {
	Type    string `json:"type" msgpack:"type"`
	Code    int    `json:"code" msgpack:"code"`
	Service string `json:"service" msgpack:"service"`
	Message string `json:"message" msgpack:"message"`
	Data    string `json:"data,omitempty" msgpack:"data,omitempty"`
	// RequestID correlates the response with server logs
	RequestID string `json:"requestId,omitempty" msgpack:"requestId,omitempty"`
}

// ToPayload converts any error into its wire payload
func ToPayload(err error) Payload {
	var e *Error
	if errors.As(err, &e) {
		return Payload{
			Type:    e.Kind.String(),
			Code:    e.Kind.Code(),
			Service: Service,
			Message: e.Error(),
			Data:    e.Data,
		}
	}
	return Payload{
		Type:    Internal.String(),
		Code:    Internal.Code(),
		Service: Service,
		Message: fmt.Sprintf("Error: %v", err),
	}
}

// KindOf returns the kind of err, or Internal when err is untagged
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is tagged with kind
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Malformed builds a MalformedVersion error for text
func Malformed(text string) *Error {
	return &Error{
		Kind:    MalformedVersion,
		Message: fmt.Sprintf("Version is in incorrect format: %s. Should consist of 4 parts, e.g. 1.0.0.0", text),
		Data:    text,
	}
}

// Invalid builds a RequestValidation error
func Invalid(format string, args ...any) *Error {
	return &Error{
		Kind:    RequestValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Stale builds a StaleDraft error for the requested draft version
func Stale(requested, current string) *Error {
	msg := fmt.Sprintf("Requested draft version %s is not the current draft version", requested)
	if current != "" {
		msg = fmt.Sprintf("Requested draft version %s does not match current draft version %s", requested, current)
	}
	return &Error{
		Kind:    StaleDraft,
		Message: msg,
		Data:    requested,
	}
}

// NotFoundf builds a NotFound error identifying data
func NotFoundf(data string, format string, args ...any) *Error {
	return &Error{
		Kind:    NotFound,
		Message: fmt.Sprintf(format, args...),
		Data:    data,
	}
}

// Shape builds an InvalidDocumentShape error
func Shape(msg string) *Error {
	return &Error{
		Kind:    InvalidDocumentShape,
		Message: msg,
	}
}

// Wrap tags err as Internal with a message, preserving it for errors.Is
func Wrap(err error, format string, args ...any) *Error {
	return &Error{
		Kind:    Internal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
