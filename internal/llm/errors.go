package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidRequest means the provider rejected the request itself, e.g. a
// prompt over the context window or an unknown model. Retrying won't help.
var ErrInvalidRequest = errors.New("invalid request")

func statusError(op string, status int, body []byte) error {
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s returned %d: %s", ErrInvalidRequest, op, status, string(body))
	}
	return fmt.Errorf("%s returned %d: %s", op, status, string(body))
}
