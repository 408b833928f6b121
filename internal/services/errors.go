package services

import (
	"errors"
	"fmt"

	"hearth-backend/internal/repository"
)

var (
	ErrInvalidCode     = errors.New("invalid invite code")
	ErrHomeFull        = errors.New("home already has two partners")
	ErrSelfJoin        = errors.New("cannot join your own home")
	ErrAlreadyInCouple = errors.New("user is already in a couple")
	ErrNoCouple        = errors.New("user is not in a couple")
	ErrNotPaired       = errors.New("partner has not joined yet")
	ErrValidation      = errors.New("validation failed")
	ErrNotMatched      = errors.New("proposals do not match")
	ErrNothingToAccept = errors.New("partner has not proposed")
	ErrNotFound        = errors.New("not found")
	ErrNetwork         = errors.New("backend unavailable")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// networkError marks err as a backend failure while keeping it inspectable
func networkError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
}

func notFoundOrNetwork(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return networkError(op, err)
}
