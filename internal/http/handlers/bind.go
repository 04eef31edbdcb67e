package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON binds the request body into out. On failure it returns a
// field→message map keyed by JSON field names; the caller shapes the envelope
// since validation failures wear different status codes per endpoint.
func BindJSON(ctx *gin.Context, out interface{}) (map[string]string, bool) {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		return parseBindError(err, out), false
	}

	return nil, true
}

func parseBindError(err error, out interface{}) map[string]string {
	rootType := baseStructType(out)

	// validator errors (struct bind tags)

	var validatorError validator.ValidationErrors

	if errors.As(err, &validatorError) {
		fields := make(map[string]string, len(validatorError))

		for _, fieldError := range validatorError {
			field := jsonFieldName(rootType, fieldError.StructField())
			fields[field] = validationMessage(fieldError.Tag(), fieldError.Param())
		}
		return fields
	}

	// type mismatches keep the offending field name

	var unmatchedTypeError *json.UnmarshalTypeError

	if errors.As(err, &unmatchedTypeError) {
		field := jsonFieldName(rootType, unmatchedTypeError.Field)

		if field == "" {
			field = "body"
		}

		return map[string]string{
			field: fmt.Sprintf("must be of type %s", unmatchedTypeError.Type.String()),
		}
	}

	// bad JSON, empty body, everything else
	return map[string]string{"body": "must be valid JSON"}
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

func jsonFieldName(rootType reflect.Type, structField string) string {
	structField = strings.TrimSpace(structField)

	if rootType == nil || structField == "" {
		return strings.ToLower(structField)
	}

	sf, ok := rootType.FieldByName(structField)

	if !ok {
		return strings.ToLower(structField)
	}

	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name
	}

	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
