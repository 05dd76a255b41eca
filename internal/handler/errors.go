package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/psds-microservice/rma-service/internal/errs"
	"github.com/psds-microservice/rma-service/internal/model"
)

func digitsOnly(fl validator.FieldLevel) bool {
	return model.IsValidRMANumber(fl.Field().String())
}

// RegisterValidators добавляет в валидатор gin правило digits и имена полей из json-тегов.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("handler: gin validator is not go-playground/validator")
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("digits", digitsOnly); err != nil {
		return fmt.Errorf("handler: register digits: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
	Service string `json:"service,omitempty"`
}

// writeError пишет {error, details?, code?}; статус берётся из AppError.
// Подробности внутренних ошибок отдаются только при exposeDetails.
func writeError(c *gin.Context, err error, exposeDetails bool) {
	if errors.Is(err, errs.ErrTicketNotFound) {
		err = errs.NewNotFoundError("RMA ticket")
	}
	appErr := errs.GetAppError(err)
	if appErr == nil {
		appErr = errs.NewInternalError("Internal server error", err.Error())
	}
	_ = c.Error(err)

	resp := errorResponse{
		Error:   appErr.Message,
		Code:    appErr.APICode(),
		Service: appErr.Service,
	}
	if appErr.Type != errs.TypeInternal || exposeDetails {
		resp.Details = appErr.Details
	}
	c.AbortWithStatusJSON(appErr.Status, resp)
}

// bindError переводит ошибку биндинга в ValidationError с перечнем полей.
func bindError(err error) *errs.AppError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return errs.NewValidationError("Invalid request", err.Error())
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			fields = append(fields, fe.Field()+" is required")
		case "digits":
			fields = append(fields, fe.Field()+" must contain digits only")
		default:
			fields = append(fields, fe.Field()+" failed "+fe.Tag())
		}
	}
	return errs.NewValidationError("Invalid request", strings.Join(fields, "; "))
}
