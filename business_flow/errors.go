// Package businessflow contains the core business logic and use cases for the automation engine
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Rule-related errors
	ErrRuleNotFound            = errors.New("rule not found")
	ErrRuleInactive            = errors.New("rule is inactive")
	ErrRuleNameRequired        = errors.New("rule name is required")
	ErrRuleScopeInvalid        = errors.New("rule scope kind is invalid")
	ErrRuleMetricInvalid       = errors.New("rule metric is not part of the snapshot schema")
	ErrRuleOperatorInvalid     = errors.New("rule operator is invalid")
	ErrRuleAggregationInvalid  = errors.New("rule aggregation is invalid")
	ErrRuleWindowInvalid       = errors.New("rule window must be between 1 and 90 days")
	ErrRuleActionInvalid       = errors.New("rule action type is invalid")
	ErrRuleActionScopeMismatch = errors.New("rule action does not apply to the rule scope")
	ErrRuleCooldownInvalid     = errors.New("rule cooldown must not be negative")
	ErrRuleUpdateRequired      = errors.New("at least one field must be provided for update")

	// Log entry errors
	ErrLogEntryNotFound   = errors.New("automation log entry not found")
	ErrLogEntryNotPending = errors.New("automation log entry is not pending")
	ErrActionUnsupported  = errors.New("unsupported action type")

	// Rollback errors
	ErrNotRollbackable    = errors.New("entry cannot be rolled back")
	ErrAlreadyRolledBack  = errors.New("entry has already been rolled back")
	ErrPreviousStateEmpty = errors.New("entry carries no previous state")

	// Target errors
	ErrTargetNotFound  = errors.New("target entity not found")
	ErrTargetNoBudget  = errors.New("target entity carries no budget")
	ErrTargetNotActive = errors.New("target entity is not active")

	// Admin auth errors
	ErrAdminNotFound     = errors.New("admin not found")
	ErrAdminInactive     = errors.New("admin account is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrUsernameRequired  = errors.New("username is required")
	ErrPasswordRequired  = errors.New("password is required")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

func IsLogEntryNotFound(err error) bool {
	return errors.Is(err, ErrLogEntryNotFound)
}

func IsLogEntryNotPending(err error) bool {
	return errors.Is(err, ErrLogEntryNotPending)
}

func IsNotRollbackable(err error) bool {
	return errors.Is(err, ErrNotRollbackable)
}

func IsAlreadyRolledBack(err error) bool {
	return errors.Is(err, ErrAlreadyRolledBack)
}

func IsTargetNotFound(err error) bool {
	return errors.Is(err, ErrTargetNotFound)
}

func IsAdminNotFound(err error) bool {
	return errors.Is(err, ErrAdminNotFound)
}

func IsAdminInactive(err error) bool {
	return errors.Is(err, ErrAdminInactive)
}

// IsRuleValidation reports whether the error is one of the rule validation
// sentinels, so handlers can answer with a 400 instead of a 500.
func IsRuleValidation(err error) bool {
	for _, sentinel := range []error{
		ErrRuleNameRequired, ErrRuleScopeInvalid, ErrRuleMetricInvalid,
		ErrRuleOperatorInvalid, ErrRuleAggregationInvalid, ErrRuleWindowInvalid,
		ErrRuleActionInvalid, ErrRuleActionScopeMismatch, ErrRuleCooldownInvalid,
		ErrRuleUpdateRequired,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}
