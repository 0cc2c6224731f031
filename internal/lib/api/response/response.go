package response

import (
	"strings"

	"credentials_service/internal/lib/validation"

	"github.com/go-playground/validator/v10"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Response struct {
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Code      string   `json:"code,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	Stack     string   `json:"stack,omitempty"`
}

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

func ErrorCode(msg, code string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
		Code:   code,
	}
}

// WithRequestID tags the response so clients can quote it back to operators.
func (r Response) WithRequestID(id string) Response {
	r.RequestID = id
	return r
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		errMsgs = append(errMsgs, fieldMessages(err)...)
	}

	return Response{
		Status: StatusError,
		Error:  "Validation failed",
		Code:   "VALIDATION_ERROR",
		Errors: errMsgs,
	}
}

func fieldMessages(err validator.FieldError) []string {
	field := capitalize(err.Field())

	switch err.ActualTag() {
	case "required":
		return []string{field + " is required"}
	case "email":
		return []string{"Please provide a valid email address"}
	case "min":
		return []string{field + " must be at least " + err.Param() + " characters long"}
	case "max":
		return []string{field + " must be at most " + err.Param() + " characters long"}
	case validation.PasswordTag:
		value, _ := err.Value().(string)
		return validation.PasswordProblems(value)
	default:
		return []string{field + " is not valid (" + strings.ToLower(err.ActualTag()) + ")"}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
