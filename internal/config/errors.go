package config

import "errors"

// ErrInvalidInput is returned for user input that cannot be turned into records.
var ErrInvalidInput = errors.New("invalid input")
