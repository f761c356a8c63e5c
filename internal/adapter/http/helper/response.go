package helper

import (
	"maps"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/jefferypippitt/essential-todo/internal/core/model/response"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
	"github.com/jefferypippitt/essential-todo/internal/core/service"
)

const CodeBadRequest = "BAD_REQUEST"

func SendSuccess(c *gin.Context, statusCode int, data any, message ...string) {
	body := response.SuccessResponse{Data: data}
	if len(message) > 0 {
		body.Message = message[0]
	}

	c.JSON(statusCode, body)
}

func SendError(c *gin.Context, statusCode int, code string, errors []response.ValidationError, details ...any) {
	body := response.ResponseError{Code: code, Errors: errors}
	if len(details) > 0 {
		body.Details = details[0]
	}

	c.JSON(statusCode, response.ErrorResponse{Error: body})
}

func single(field, message string) []response.ValidationError {
	return []response.ValidationError{{Field: field, Message: message}}
}

// SendValidationError reports every field the validator can extract from err.
func SendValidationError(c *gin.Context, validator port.Validator, err error) {
	fields := validator.FieldErrors(err)
	errors := make([]response.ValidationError, len(fields))

	for i, f := range fields {
		errors[i] = response.ValidationError{Field: f.Field, Message: f.Message}
	}

	SendError(c, http.StatusBadRequest, service.CodeValidation, errors)
}

func SendInternalError(c *gin.Context, message string, details ...any) {
	SendError(c, http.StatusInternalServerError, service.CodeInternal, single("server", message), details...)
}

func SendBadRequestError(c *gin.Context, field string, message string) {
	SendError(c, http.StatusBadRequest, CodeBadRequest, single(field, message))
}

func SendNotFoundError(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, service.CodeNotFound, single("resource", message))
}

// StatusForCode maps an ActionState code to the HTTP status it is sent with.
func StatusForCode(code string) int {
	switch code {
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// SendAction writes an ActionState. Successful states use successStatus,
// failed ones are turned into the error envelope.
func SendAction(c *gin.Context, successStatus int, state response.ActionState) {
	if state.Success {
		SendSuccess(c, successStatus, state.Data, state.Message)
		return
	}

	errors := flattenFieldErrors(state.Errors)

	if len(errors) == 0 {
		errors = single(fieldForCode(state.Code), state.Message)
	}

	SendError(c, StatusForCode(state.Code), state.Code, errors)
}

func fieldForCode(code string) string {
	switch code {
	case service.CodeNotFound:
		return "resource"
	case service.CodeValidation:
		return "request"
	default:
		return "server"
	}
}

func flattenFieldErrors(grouped map[string][]string) []response.ValidationError {
	var errors []response.ValidationError

	for _, field := range slices.Sorted(maps.Keys(grouped)) {
		for _, message := range grouped[field] {
			errors = append(errors, response.ValidationError{Field: field, Message: message})
		}
	}

	return errors
}
