/*
Package req decodes and validates inbound JSON.

Decoding is strict: unknown fields and anything after the first JSON value are
rejected. Validation uses go-playground/validator struct tags and reports fields
by their JSON names.
*/
package req

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrTrailingData is returned when more input follows the decoded value.
var ErrTrailingData = errors.New("unexpected data after JSON value")

// FieldError describes the first field that failed validation.
type FieldError struct {
	// Field is the JSON name of the field.
	Field string
	// Tag is the validation tag that failed, e.g. "required".
	Tag string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s is %s", e.Field, e.Tag)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// DecodeStrict unmarshals data into dst, rejecting unknown fields and trailing data.
func DecodeStrict(data []byte, dst any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}

	if decoder.More() {
		return ErrTrailingData
	}

	return nil
}

// Validate checks the struct tags of v. A failure is returned as *FieldError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &FieldError{Field: verrs[0].Field(), Tag: verrs[0].Tag()}
	}

	return err
}

// Bind decodes data strictly into dst and validates the result.
func Bind(data []byte, dst any) error {
	if err := DecodeStrict(data, dst); err != nil {
		return err
	}
	return Validate(dst)
}
