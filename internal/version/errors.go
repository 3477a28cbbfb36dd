package version

import "errors"

var (
	// ErrInvalidSpecifier is returned when a specifier is not at least major.minor.
	ErrInvalidSpecifier = errors.New("invalid version specifier")

	// ErrVersionNotFound is returned when no eligible catalog entry matches.
	ErrVersionNotFound = errors.New("version not found")

	// ErrCatalogUnavailable is returned when a release feed cannot be read or is empty.
	ErrCatalogUnavailable = errors.New("release catalog unavailable")
)
