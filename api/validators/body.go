package validators

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/domeo/backoffice/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

type decodeOptions struct {
	allowUnknown bool
}

// DecodeOption tunes DecodeJSONBody.
type DecodeOption func(*decodeOptions)

// AllowUnknownFields accepts payloads carrying fields the destination does not declare.
func AllowUnknownFields() DecodeOption {
	return func(o *decodeOptions) { o.allowUnknown = true }
}

func DecodeJSONBody(r *http.Request, dest any, opts ...DecodeOption) error {
	var options decodeOptions
	for _, opt := range opts {
		opt(&options)
	}

	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	if !options.allowUnknown {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors names the offending fields in the message so the
// plain "error" string is useful on its own.
func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		fields := make([]string, 0, len(errs))
		for _, fieldErr := range errs {
			msg := validationMessage(fieldErr)
			details[fieldErr.Field()] = msg
			fields = append(fields, fieldErr.Field()+" "+msg)
		}
		sort.Strings(fields)
		return pkgerrors.New(pkgerrors.CodeValidation, strings.Join(fields, "; ")).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	}
	return "is invalid"
}
