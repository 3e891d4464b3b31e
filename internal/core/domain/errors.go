package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownModel  = errors.New("unknown model")
	ErrNoActiveScope = errors.New("no active scope")
	ErrExpansion     = errors.New("query expansion failed")
	ErrTemplate      = errors.New("invalid prompt template")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrTemporary     = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
