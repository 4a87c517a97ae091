package errormsg

import (
	"fmt"
	"net/http"
	"os"
)

type ErrorMessage struct {
	isProd bool
}

func Create(isProd bool) ErrorMessage {
	return ErrorMessage{isProd: isProd}
}

// CreateFromEnv treats every environment except RELAY_ENV=dev as production.
func CreateFromEnv() ErrorMessage {
	return Create(os.Getenv("RELAY_ENV") != "dev")
}

func (em ErrorMessage) IsProd() bool {
	return em.isProd
}

// Error masks msg as an internal error in production.
func (em ErrorMessage) Error(msg error) error {
	return em.ErrorWithCode(http.StatusInternalServerError, msg)
}

// ErrorWithCode keeps the reason of client errors; server error details are hidden in production.
func (em ErrorMessage) ErrorWithCode(code int, message error) error {
	if em.isProd && http.StatusInternalServerError <= code {
		return em.Code(code)
	}
	if message == nil {
		return em.Code(code)
	}
	return message
}

func (em ErrorMessage) Code(code int) error {
	return fmt.Errorf("%d: %s", code, http.StatusText(code))
}
