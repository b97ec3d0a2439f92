package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	imageSizeRegex = regexp.MustCompile(`^([a-z0-9_-]+|[0-9]+x[0-9]+)$`)
)

// Validator wraps go-playground validator with media rules
type Validator struct {
	validate *validator.Validate
}

// ErrorResponse is the body written for rejected requests
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// New creates a validator with the media rules registered
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterValidation("image_size", validateImageSize)
	v.RegisterValidation("remote_url", validateRemoteURL)

	return &Validator{validate: v}
}

// Validate validates a struct
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// validateImageSize accepts a registered size name or explicit WxH
func validateImageSize(fl validator.FieldLevel) bool {
	return imageSizeRegex.MatchString(strings.ToLower(fl.Field().String()))
}

// validateRemoteURL accepts absolute http(s) URLs with a host
func validateRemoteURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FieldErrors flattens a validation error into field -> message
func FieldErrors(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		if err != nil {
			fields["request"] = err.Error()
		}
		return fields
	}

	for _, fe := range validationErrors {
		fields[fe.Field()] = FormatFieldError(fe)
	}
	return fields
}

// FormatFieldError renders one field error as a readable message
func FormatFieldError(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("the %s field is required", field)
	case "min":
		return fmt.Sprintf("the %s field must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("the %s field may not be greater than %s", field, fe.Param())
	case "image_size":
		return fmt.Sprintf("the %s field must be a size name or WIDTHxHEIGHT", field)
	case "remote_url":
		return fmt.Sprintf("the %s field must be an http or https URL", field)
	default:
		return fmt.Sprintf("the %s field is invalid", field)
	}
}

// EncodeValidationError encodes field errors into a JSON string for gRPC status messages
func EncodeValidationError(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}

	data, err := json.Marshal(struct {
		Fields map[string]string `json:"fields"`
	}{Fields: fields})
	if err != nil {
		for _, msg := range fields {
			return msg
		}
		return "validation error"
	}
	return string(data)
}

// WriteValidationErrorResponse writes a 422 with the field errors of err
func WriteValidationErrorResponse(w http.ResponseWriter, err error) {
	fields := FieldErrors(err)

	message := "the given data was invalid"
	for _, key := range sortedKeys(fields) {
		message = fields[key]
		break
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(ErrorResponse{Message: message, Errors: fields})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
