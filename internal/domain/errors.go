package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrInvariant    = errors.New("invariant violation")
)

// InvariantViolation reports data that breaks a contract the upstream
// collaborators guarantee (content schema, closed submission union).
type InvariantViolation struct {
	Op     string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvariant, e.Op, e.Detail)
}

func (e *InvariantViolation) Is(target error) bool { return target == ErrInvariant }

func invariant(op, format string, args ...any) error {
	return &InvariantViolation{Op: op, Detail: fmt.Sprintf(format, args...)}
}
