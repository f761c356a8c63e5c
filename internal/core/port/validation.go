package port

import "github.com/jefferypippitt/essential-todo/internal/core/domain"

type Validator interface {
	ValidateStruct(s interface{}) error
	FieldErrors(err error) []domain.FieldError
}
