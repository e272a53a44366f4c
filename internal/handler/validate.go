package handler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/utils"
)

// requestTimeout bounds the store calls of one request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// Validator adapts go-playground/validator to echo.  Field names in
// violations are the json (or query) names clients send.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseRole(fl.Field().String())
		return ok
	})
	// bcrypt reads at most 72 bytes; max counts runes.
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= utils.MaxPasswordBytes
	})
	return &Validator{v: v}
}

// Validate returns an apperr validation error listing every failed field.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Internal("validate request", err)
	}
	out := make([]apperr.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apperr.Violation{Field: fe.Field(), Message: violationMessage(fe)})
	}
	return apperr.Validation(out...)
}

func violationMessage(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "email":
		return f + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", f, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", f, fe.Param())
	case "role":
		return f + " must be one of admin, manager, customer"
	case "bcryptlen":
		return fmt.Sprintf("%s must be at most %d bytes", f, utils.MaxPasswordBytes)
	}
	return f + " is invalid"
}

// normalizer is implemented by requests that clean their input before
// validation, e.g. trimming whitespace.
type normalizer interface {
	normalize()
}

// bind decodes the request into req, normalizes it and validates it.
// location ("body" or "query") is reported with each violation.
func bind(c echo.Context, req any, location string) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation(apperr.Violation{Message: "malformed request", Location: location})
	}
	if n, ok := req.(normalizer); ok {
		n.normalize()
	}
	if err := c.Validate(req); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			for i := range ae.Violations {
				ae.Violations[i].Location = location
			}
		}
		return err
	}
	return nil
}

// pathID parses the :id parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(apperr.Violation{Field: "id", Message: "id must be a positive integer", Location: "params"})
	}
	return id, nil
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

// pageResponse is the envelope of list endpoints.
type pageResponse[T any] struct {
	CurrentPage int `json:"currentPage"`
	PerPage     int `json:"perPage"`
	Total       int `json:"total"`
	Data        []T `json:"data"`
}

func newPage[T any](p model.Page, total int, data []T) pageResponse[T] {
	p = p.Normalize()
	if data == nil {
		data = []T{}
	}
	return pageResponse[T]{CurrentPage: p.Current, PerPage: p.PerPage, Total: total, Data: data}
}
