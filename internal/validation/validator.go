// Package validation wires go-playground/validator into Echo's validation
// interface and formats field errors as domain validation errors.
package validation

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/fernwick/trapline"
	"github.com/go-playground/validator/v10"
)

// Validator implements echo.Validator using struct tags.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator instance.
//
// Usage:
//
//	e.Validator = validation.NewValidator()
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate validates a struct using its validation tags. Failures come back
// as an EINVALID domain error with per-field messages, so the HTTP error
// handler renders them without any special casing.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		return trapline.ErrorWithFields(FormatValidationErrors(validationErrors))
	}
	return err
}

// FormatValidationErrors converts validator errors to user-friendly field
// messages, e.g. {"status": "must be one of: ok activity needs_service replaced"}.
func FormatValidationErrors(err error) map[string]string {
	fields := make(map[string]string)

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["_error"] = err.Error()
		return fields
	}

	for _, fieldErr := range validationErrors {
		fieldName := strings.ToLower(fieldErr.Field())

		switch fieldErr.Tag() {
		case "required":
			fields[fieldName] = "is required"
		case "uuid":
			fields[fieldName] = "must be a valid UUID"
		case "email":
			fields[fieldName] = "must be a valid email address"
		case "oneof":
			fields[fieldName] = fmt.Sprintf("must be one of: %s", fieldErr.Param())
		case "min":
			if fieldErr.Type().Kind() == reflect.String {
				fields[fieldName] = fmt.Sprintf("must be at least %s characters", fieldErr.Param())
			} else {
				fields[fieldName] = fmt.Sprintf("must be at least %s", fieldErr.Param())
			}
		case "max":
			if fieldErr.Type().Kind() == reflect.String {
				fields[fieldName] = fmt.Sprintf("must be no more than %s characters", fieldErr.Param())
			} else {
				fields[fieldName] = fmt.Sprintf("must be no more than %s", fieldErr.Param())
			}
		case "gte":
			fields[fieldName] = fmt.Sprintf("must be greater than or equal to %s", fieldErr.Param())
		case "lte":
			fields[fieldName] = fmt.Sprintf("must be less than or equal to %s", fieldErr.Param())
		default:
			fields[fieldName] = fmt.Sprintf("failed validation: %s", fieldErr.Tag())
		}
	}

	return fields
}

// ValidatePhotoUpload validates a photo form upload: size limit and sniffed
// content type. The MIME type is detected from the file bytes, not the
// client-supplied header. Returns the detected content type on success.
func ValidatePhotoUpload(header *multipart.FileHeader, maxSize int64, allowedTypes []string) (string, error) {
	if header.Size > maxSize {
		return "", trapline.Invalid("Photo exceeds the maximum size of %d bytes", maxSize)
	}

	file, err := header.Open()
	if err != nil {
		return "", trapline.Internal("Failed to open uploaded photo", err)
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && n == 0 {
		return "", trapline.Invalid("Uploaded photo is empty or unreadable")
	}

	contentType := http.DetectContentType(buffer[:n])
	for _, allowed := range allowedTypes {
		if contentType == allowed {
			return contentType, nil
		}
	}
	return "", trapline.Invalid("Photo type %s is not allowed (allowed: %s)",
		contentType, strings.Join(allowedTypes, ", "))
}
