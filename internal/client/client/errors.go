package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

// ErrUnavailable wraps transport failures: the server could not be reached
// or answered with something other than the JSON envelope.
var ErrUnavailable = errors.New("server unavailable")

// APIError is a decoded failure envelope.
type APIError struct {
	Status int
	Type   string
	Errors []FieldError
}

type FieldError struct {
	Detail string  `json:"detail"`
	Attr   *string `json:"attr"`
}

func (e *APIError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Attr != nil {
			parts = append(parts, *fe.Attr+": "+fe.Detail)
		} else {
			parts = append(parts, fe.Detail)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s (%d)", e.Type, e.Status)
	}
	return strings.Join(parts, "; ")
}

// Is lets callers match status categories against the shared sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case common.ErrorUnauthorized:
		return e.Status == 401
	case common.ErrorAlreadyExists:
		return e.Status == 409
	case common.ErrorValidation:
		return e.Status == 400
	}
	return false
}
