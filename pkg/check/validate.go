package check

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Validatable is implemented by anything that has fields that should be validated.
type Validatable interface {
	Validate() []error
}

// Validate runs v's checks and combines every failure into a single error, or returns nil if
// all of them passed.
func Validate(v Validatable) error {
	var result *multierror.Error
	for _, err := range v.Validate() {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// GreaterThan checks that actual > bound.
func GreaterThan[T constraints.Ordered](actual, bound T, msg string) error {
	if actual > bound {
		return nil
	}
	return errors.Errorf("%s: %v is not greater than %v", msg, actual, bound)
}

// GreaterThanOrEqualTo checks that actual >= bound.
func GreaterThanOrEqualTo[T constraints.Ordered](actual, bound T, msg string) error {
	if actual >= bound {
		return nil
	}
	return errors.Errorf("%s: %v is less than %v", msg, actual, bound)
}

// Contains checks whether actual is one of expected.
func Contains[T comparable](actual T, expected []T, msg string) error {
	for _, value := range expected {
		if value == actual {
			return nil
		}
	}
	return errors.Errorf("%s: %v not in %v", msg, actual, expected)
}
