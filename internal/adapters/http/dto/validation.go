package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
)

var (
	// ErrValidation wraps struct tag failures on a request body.
	ErrValidation = errors.New("validation failed")

	// ErrBinding wraps JSON decoding failures.
	ErrBinding = errors.New("binding failed")
)

// Validator returns the request validator. Field names in its errors are the
// JSON names clients send.
var Validator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	if err := v.RegisterValidation("serverid", isServerID); err != nil {
		panic(fmt.Sprintf("dto: registering serverid validation: %v", err))
	}

	return v
})

// isServerID accepts "@group/name" and "group/name" with surrounding space
// allowed, since domain.NormalizeServerID trims it.
func isServerID(fl validator.FieldLevel) bool {
	id := strings.TrimPrefix(strings.TrimSpace(fl.Field().String()), "@")

	group, name, ok := strings.Cut(id, "/")
	if !ok || group == "" || name == "" || strings.Contains(name, "/") {
		return false
	}

	return !strings.ContainsFunc(id, unicode.IsSpace)
}

// BindAndValidate decodes the JSON body into v and checks its validate tags.
// An empty body leaves v untouched, so request types with defaults accept it.
func BindAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// ToDomainError converts a BindAndValidate failure into a Validation error.
// Field failures are reported under detail.fields keyed by JSON name.
func ToDomainError(err error) *domain.Error {
	if fields := ValidationErrors(err); len(fields) > 0 {
		return domain.NewError(domain.KindValidation, "Request validation failed", map[string]any{
			"fields": fields,
		})
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return domain.NewError(domain.KindValidation, "Request validation failed", map[string]any{
			"fields": map[string]string{typeErr.Field: "must be of type " + typeErr.Type.String()},
		})
	}

	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}

	return domain.NewError(domain.KindValidation, "Malformed request body", map[string]any{
		"reason": strings.TrimPrefix(err.Error(), ErrBinding.Error()+": "),
	})
}

// ValidationErrors maps each failing field's JSON name to a client-facing
// message. It returns an empty map for errors that are not tag failures.
func ValidationErrors(err error) map[string]string {
	fields := make(map[string]string)

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, fe := range errs {
			fields[fe.Field()] = validationMessage(fe)
		}
	}

	return fields
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "serverid":
		return "must be an MCP server ID such as @group/name"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}

		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be %s %s characters", bound, fe.Param())
		}

		return fmt.Sprintf("must be %s %s", bound, fe.Param())
	default:
		return "failed validation: " + fe.Tag()
	}
}
