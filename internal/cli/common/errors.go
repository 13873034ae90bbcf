package common

import (
	"github.com/crmarques/mobilectl/faults"
)

func ValidationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

func requiredError(label string) error {
	return ValidationError(label+" is required", nil)
}
