// Package errors maps service failures to the categories the HTTP layer
// renders.
package errors

import (
	"errors"
	"net/http"
)

// Category classifies a ServiceError.
type Category int

const (
	// CategoryGeneralError is an unexpected failure. Its detail is never
	// shown to the caller.
	CategoryGeneralError Category = iota
	// CategoryDataError is invalid input in the payload or parameters.
	CategoryDataError
	// CategoryUnauthorized is a request without valid credentials.
	CategoryUnauthorized
	// CategoryForbidden is an authenticated caller acting outside its role.
	CategoryForbidden
	// CategoryResourceNotFound is an unknown or hidden resource.
	CategoryResourceNotFound
	// CategoryDataConflict is a request the current resource state forbids.
	CategoryDataConflict
	// CategoryDependencyFailure is a failing chain, price feed or store.
	CategoryDependencyFailure
)

var statusCodes = map[Category]int{
	CategoryGeneralError:      http.StatusInternalServerError,
	CategoryDataError:         http.StatusBadRequest,
	CategoryUnauthorized:      http.StatusUnauthorized,
	CategoryForbidden:         http.StatusForbidden,
	CategoryResourceNotFound:  http.StatusNotFound,
	CategoryDataConflict:      http.StatusConflict,
	CategoryDependencyFailure: http.StatusBadGateway,
}

// ServiceError carries a caller-facing message and the underlying cause.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is matches on the caller-facing message.
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// StatusCode returns the HTTP status of the category.
func (err ServiceError) StatusCode() int {
	if code, ok := statusCodes[err.Category]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Is reports whether err wraps a ServiceError of category cat.
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

func newError(cat Category, err error, message, fallback string) error {
	if err == nil {
		err = errors.New(fallback)
	}
	return &ServiceError{Category: cat, Message: message, Err: err}
}

// GeneralError hides err behind "Internal Server Error".
func GeneralError(err error) error {
	return newError(CategoryGeneralError, err, "Internal Server Error", "internal server error")
}

func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message, "bad request: "+message)
}

func UnAuthorizedError(err error, message string) error {
	return newError(CategoryUnauthorized, err, message, "unauthorized")
}

func ForbiddenError(err error, message string) error {
	return newError(CategoryForbidden, err, message, "request forbidden")
}

func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message, "resource not found: "+message)
}

// ConflictError reports a request the record's state does not allow. The
// message is a stable code such as not_failed.
func ConflictError(err error, message string) error {
	return newError(CategoryDataConflict, err, message, "conflict: "+message)
}

func DependencyError(err error, message string) error {
	return newError(CategoryDependencyFailure, err, message, "dependency failure")
}
