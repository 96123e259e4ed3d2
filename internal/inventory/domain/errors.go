package inventory

import "errors"

// ErrNotFound indicates a missing inventory record.
var ErrNotFound = errors.New("inventory: not found")
