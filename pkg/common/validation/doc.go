// Package validation provides common validation utilities for constructor
// arguments and configuration values across the goasync library.
//
// Every function returns nil or a *errors.ValidationError, which wraps
// errors.ErrInvalidConfiguration so callers can match on either.
package validation
