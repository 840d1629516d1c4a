package supplier

import (
	"errors"
	"fmt"
)

// ValidationError is a configuration that must never reach the chain, such as an empty
// service list or revenue shares that do not add up to 100%.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid supplier configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid supplier configuration: %s: %s", e.Field, e.Reason)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
