package memutils

import (
	"github.com/pkg/errors"
)

type Number interface {
	~int | ~uint | ~int32 | ~uint32
}

func CheckPositive[T Number](number T, name string) error {
	if number <= 0 {
		return errors.Wrapf(NonPositiveError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment. alignment does not need
// to be a power of two.
func AlignUp(value int, alignment int) int {
	if alignment <= 1 {
		return value
	}
	return ((value + alignment - 1) / alignment) * alignment
}

// DivCeil returns the number of units of the provided size needed to hold value.
func DivCeil(value int, unit int) int {
	return (value + unit - 1) / unit
}
