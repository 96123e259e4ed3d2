package rules

import "errors"

// ErrNotFound indicates a missing rule record.
var ErrNotFound = errors.New("rules: not found")
