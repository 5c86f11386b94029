package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadySubmitted  = errors.New("challenge already submitted")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrNetworkTimeout    = errors.New("network timeout")
	ErrNetwork           = errors.New("network error")
	ErrChallengeNotFound = errors.New("no challenge for today")
	ErrUnknownTier       = errors.New("unknown subscription tier")
	ErrKeyNotFound       = errors.New("key not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidToken      = errors.New("invalid token")
)

// ConfigurationError is returned for a feature id missing from the catalog or a
// catalog that breaks its own rules. It signals a deployment bug.
type ConfigurationError struct {
	FeatureID string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("feature %q misconfigured: %s", e.FeatureID, e.Reason)
	}
	return fmt.Sprintf("unknown feature %q", e.FeatureID)
}

// TransitionError reports a state machine operation attempted from the wrong state.
type TransitionError struct {
	Machine string
	From    string
	Op      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from state %s", e.Machine, e.Op, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// QuotaExceededError carries the denial so callers can present the upgrade path.
type QuotaExceededError struct {
	Decision Decision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s on %s tier (%d/%d), upgrade to %s",
		e.Decision.FeatureID, e.Decision.Tier, e.Decision.Used, e.Decision.Limit, e.Decision.SuggestedTier)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
