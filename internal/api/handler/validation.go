package handler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error

	countryPattern = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

func initValidators() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())

	if err := vld.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
		str := fl.Field().String()
		if str == "" {
			return true // Let required tag handle empty strings
		}
		d, err := decimal.NewFromString(str)
		return err == nil && d.IsPositive()
	}); err != nil {
		return nil, fmt.Errorf("register positive_amount: %w", err)
	}
	if err := vld.RegisterValidation("nonnegative_amount", func(fl validator.FieldLevel) bool {
		str := fl.Field().String()
		if str == "" {
			return true
		}
		d, err := decimal.NewFromString(str)
		return err == nil && !d.IsNegative()
	}); err != nil {
		return nil, fmt.Errorf("register nonnegative_amount: %w", err)
	}
	if err := vld.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		return countryPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register country: %w", err)
	}
	return vld, nil
}

func validateStruct(payload any) error {
	validateOnce.Do(func() {
		validate, errValidate = initValidators()
	})
	if errValidate != nil {
		return errValidate
	}
	if err := validate.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return formatFieldError(fieldErrs[0])
		}
		return err
	}
	return nil
}

func formatFieldError(fe validator.FieldError) error {
	field := toSnakeCase(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "positive_amount":
		return fmt.Errorf("%s must be a positive decimal amount", field)
	case "nonnegative_amount":
		return fmt.Errorf("%s must be a non-negative decimal amount", field)
	case "uuid":
		return fmt.Errorf("%s must be a valid UUID", field)
	case "country":
		return fmt.Errorf("%s must be a two-letter country code", field)
	case "len":
		return fmt.Errorf("%s must be exactly %s characters", field, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s]", field, fe.Param())
	case "numeric":
		return fmt.Errorf("%s must be numeric", field)
	}
	return fmt.Errorf("%s is invalid", field)
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
