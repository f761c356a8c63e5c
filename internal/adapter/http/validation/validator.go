package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
)

type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

var _ port.Validator = (*Validator)(nil)

func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	uni := ut.New(english, english)

	translator, found := uni.GetTranslator("en")

	if !found {
		panic("translator en not found")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	v := &Validator{validate: validate, translator: translator}
	v.addCustomTranslations()

	return v
}

func (v *Validator) addCustomTranslations() {
	v.validate.RegisterTranslation("required", v.translator, func(ut ut.Translator) error {
		return ut.Add("required", "{0} is required", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("required", getFieldName(fe.Field()))
		return t
	})

	v.validate.RegisterTranslation("max", v.translator, func(ut ut.Translator) error {
		if err := ut.Add("max", "{0} must be at most {1}", true); err != nil {
			return err
		}
		return ut.Add("max-string", "{0} must be at most {1} characters", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		key := "max"
		if fe.Kind() == reflect.String {
			key = "max-string"
		}
		t, _ := ut.T(key, getFieldName(fe.Field()), fe.Param())
		return t
	})

	v.validate.RegisterTranslation("gt", v.translator, func(ut ut.Translator) error {
		return ut.Add("gt", "{0} must be greater than {1}", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("gt", getFieldName(fe.Field()), fe.Param())
		return t
	})
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Title":       "Title",
		"Description": "Description",
		"ActiveID":    "Active id",
		"OverID":      "Over id",
		"Limit":       "Limit",
	}

	if name, exists := fieldNames[field]; exists {
		return name
	}

	return field
}

func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// FieldErrors flattens validator errors into domain field errors. A domain
// ValidationError keeps its own fields; anything else comes back as a single
// "request" entry.
func (v *Validator) FieldErrors(err error) []domain.FieldError {
	if err == nil {
		return nil
	}

	var domainErr *domain.ValidationError

	if errors.As(err, &domainErr) {
		return domainErr.Fields
	}

	var validationErrors validator.ValidationErrors

	if !errors.As(err, &validationErrors) {
		return []domain.FieldError{{Field: "request", Message: err.Error()}}
	}

	fields := make([]domain.FieldError, 0, len(validationErrors))

	for _, fieldError := range validationErrors {
		fields = append(fields, domain.FieldError{
			Field:   jsonFieldName(fieldError.Field()),
			Message: fieldError.Translate(v.translator),
		})
	}

	return fields
}

func jsonFieldName(field string) string {
	switch field {
	case "ActiveID":
		return "active_id"
	case "OverID":
		return "over_id"
	}

	return strings.ToLower(field)
}
