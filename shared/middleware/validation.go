package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateRequest runs the struct's validate tags and returns one
// human-readable message per failing field, in field order.
func ValidateRequest(obj any) []string {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{"Invalid request data"}
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, Humanize(fe.Field())+" "+getErrorMsg(fe))
	}
	return messages
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "can't be blank"
	case "email":
		return "is invalid"
	case "min":
		return "is too short (minimum is " + err.Param() + " characters)"
	case "max":
		return "is too long (maximum is " + err.Param() + " characters)"
	case "eqfield":
		return "doesn't match " + Humanize(err.Param())
	default:
		return "is invalid"
	}
}

// Humanize turns "new_password_confirmation" into "New password confirmation".
// CamelCase names are split the same way.
func Humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case r == '_':
			b.WriteByte(' ')
		case unicode.IsUpper(r) && i > 0:
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func RespondWithValidationError(c *gin.Context, messages []string) {
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorBody{
		Status:  http.StatusUnprocessableEntity,
		Message: strings.Join(messages, ", "),
		Details: messages,
	}})
}
