package ai

import (
	"fmt"
)

// ServiceError reports a transport, auth or rate-limit failure of the model
// service after retries were exhausted or deemed pointless.
type ServiceError struct {
	Op       string
	Model    string
	Attempts int
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s: model service %s failed after %d attempts: %v", e.Op, e.Model, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: model service %s failed: %v", e.Op, e.Model, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// MalformedResponseError reports model output that could not be parsed or
// does not satisfy the requested schema. Raw is the untouched payload.
type MalformedResponseError struct {
	Op  string
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed model response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
