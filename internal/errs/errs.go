// Package errs: ошибки сервиса: сентинелы хранилища и типизированные AppError для HTTP-слоя.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrTicketNotFound = errors.New("rma ticket not found")

type ErrorType string

const (
	TypeValidation      ErrorType = "validation_error"
	TypeNotFound        ErrorType = "not_found"
	TypeAuthentication  ErrorType = "authentication_error"
	TypeExternalService ErrorType = "external_service_error"
	TypeInternal        ErrorType = "internal_error"
)

// AppError: ошибка с HTTP-статусом и кодом для ответа API.
type AppError struct {
	Type    ErrorType
	Message string
	Status  int
	Details string
	// Service: имя внешнего API для ошибок интеграций.
	Service string
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// APICode: значение поля code в теле ответа, например VALIDATION_ERROR.
func (e *AppError) APICode() string {
	return strings.ToUpper(string(e.Type))
}

func NewValidationError(message string, details ...string) *AppError {
	return &AppError{
		Type:    TypeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
		Details: first(details),
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:    TypeNotFound,
		Message: resource + " not found",
		Status:  http.StatusNotFound,
	}
}

// NewAuthenticationError: внешний API отклонил учётные данные.
func NewAuthenticationError(service, detail string) *AppError {
	return &AppError{
		Type:    TypeAuthentication,
		Message: fmt.Sprintf("%s authentication failed", service),
		Status:  http.StatusBadGateway,
		Details: detail,
		Service: service,
	}
}

func NewExternalServiceError(service, detail string) *AppError {
	return &AppError{
		Type:    TypeExternalService,
		Message: fmt.Sprintf("%s error", service),
		Status:  http.StatusBadGateway,
		Details: detail,
		Service: service,
	}
}

func NewInternalError(message string, details ...string) *AppError {
	return &AppError{
		Type:    TypeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Details: first(details),
	}
}

func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func IsNotFoundError(err error) bool {
	if errors.Is(err, ErrTicketNotFound) {
		return true
	}
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == TypeNotFound
}

func IsAuthenticationError(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == TypeAuthentication
}

func first(s []string) string {
	if len(s) > 0 {
		return s[0]
	}
	return ""
}
