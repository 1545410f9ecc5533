package techwatch

import "errors"

// ErrValidation marks construction failures of domain objects. Callers can
// test for it with errors.Is regardless of the wrapped detail.
var ErrValidation = errors.New("validation")
