package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
)

// validate checks Config. Field names in its errors are the koanf keys, so
// a message points at the line an operator has to fix.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}

		return name
	})

	mustRegister(v, "kind", isKind)
	mustRegister(v, "httpstatus", isHTTPStatus)
	mustRegister(v, "header", isHeaderName)

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("config: registering %q validation: %v", tag, err))
	}
}

// isKind accepts error kind tags such as "Network" or "not_found".
func isKind(fl validator.FieldLevel) bool {
	_, err := domain.ParseKind(fl.Field().String())
	return err == nil
}

// isHTTPStatus accepts classification keys naming a status code.
func isHTTPStatus(fl validator.FieldLevel) bool {
	code, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
	return err == nil && code >= 100 && code <= 599
}

// isHeaderName accepts RFC 9110 field names.
func isHeaderName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" {
		return false
	}

	for i := range len(name) {
		c := name[i]
		if c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			continue
		}

		if !strings.ContainsRune("!#$%&'*+-.^_`|~", rune(c)) {
			return false
		}
	}

	return true
}

// InvalidError lists every rule a Config breaks, one problem per field,
// each naming the koanf key to fix.
type InvalidError struct {
	Problems []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid configuration (%d problems):\n  %s", len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// Validate reports all broken rules at once as an *InvalidError.
func (c *Config) Validate() error {
	err := validate.Struct(c)

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}

	problems := make([]string, len(fields))
	for i, fe := range fields {
		problems[i] = describe(fe)
	}

	return &InvalidError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	key := keyPath(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", key, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	case "url":
		return key + " must be a valid URL"
	case "kind":
		return fmt.Sprintf("%s: %q is not an error kind (one of: %s)", key, fe.Value(), kindTags())
	case "httpstatus":
		return fmt.Sprintf("%s: %q is not an HTTP status code", key, fe.Value())
	case "header":
		return fmt.Sprintf("%s: %q is not a valid header name", key, fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s must not be below %s", key, siblingPath(key, fe.Param()))
	case "ltfield":
		return fmt.Sprintf("%s must be below %s", key, siblingPath(key, fe.Param()))
	default:
		return fmt.Sprintf("%s breaks rule %q", key, fe.Tag())
	}
}

// keyPath drops the root struct name: "Config.server.port" becomes
// "server.port". Map keys stay in brackets.
func keyPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}

	return path
}

// siblingPath names the field a cross-field rule compared against. param is
// the Go field name; its koanf key is looked up on the parent struct.
func siblingPath(field, param string) string {
	parent, _, _ := cutLast(field, ".")

	if key, ok := crossFieldKeys[param]; ok {
		param = key
	}

	if parent == "" {
		return param
	}

	return parent + "." + param
}

// crossFieldKeys maps Go field names used in gtefield/ltfield tags to their
// koanf keys.
var crossFieldKeys = map[string]string{
	"InitialBackoff": "initial_backoff",
	"WriteTimeout":   "write_timeout",
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return "", s, false
	}

	return s[:i], s[i+len(sep):], true
}

func kindTags() string {
	tags := make([]string, 0, len(domain.Kinds))
	for _, k := range domain.Kinds {
		tags = append(tags, k.String())
	}

	return strings.Join(tags, ", ")
}
