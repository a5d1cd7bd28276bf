package models

import (
	"testing"

	"github.com/arvand/adpilot/utils"
	"github.com/stretchr/testify/assert"
)

func TestAutomationLogStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    AutomationLogStatus
		to      AutomationLogStatus
		allowed bool
	}{
		{"PendingToApproved", AutomationLogStatusPending, AutomationLogStatusApproved, true},
		{"PendingToExecuted", AutomationLogStatusPending, AutomationLogStatusExecuted, true},
		{"PendingToRejected", AutomationLogStatusPending, AutomationLogStatusRejected, true},
		{"PendingToFailed", AutomationLogStatusPending, AutomationLogStatusFailed, true},
		{"PendingToExpired", AutomationLogStatusPending, AutomationLogStatusExpired, true},
		{"ApprovedToExecuted", AutomationLogStatusApproved, AutomationLogStatusExecuted, true},
		{"ApprovedToFailed", AutomationLogStatusApproved, AutomationLogStatusFailed, true},
		{"ApprovedToRejected", AutomationLogStatusApproved, AutomationLogStatusRejected, false},
		{"ExecutedIsFinal", AutomationLogStatusExecuted, AutomationLogStatusFailed, false},
		{"RejectedIsFinal", AutomationLogStatusRejected, AutomationLogStatusApproved, false},
		{"ExpiredIsFinal", AutomationLogStatusExpired, AutomationLogStatusExecuted, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := AutomationLog{Status: tc.from}
			assert.Equal(t, tc.allowed, entry.CanTransitionTo(tc.to))
		})
	}
}

func TestAutomationLogStatusIsTerminal(t *testing.T) {
	assert.False(t, AutomationLogStatusPending.IsTerminal())
	assert.False(t, AutomationLogStatusApproved.IsTerminal())
	assert.True(t, AutomationLogStatusExecuted.IsTerminal())
	assert.True(t, AutomationLogStatusRejected.IsTerminal())
	assert.True(t, AutomationLogStatusFailed.IsTerminal())
	assert.True(t, AutomationLogStatusExpired.IsTerminal())
}

func TestAutomationLogIsRollbackable(t *testing.T) {
	t.Run("ExecutedReversibleEntry", func(t *testing.T) {
		entry := AutomationLog{Status: AutomationLogStatusExecuted, CanRollback: true}
		assert.True(t, entry.IsRollbackable())
	})

	t.Run("IrreversibleAction", func(t *testing.T) {
		entry := AutomationLog{Status: AutomationLogStatusExecuted, CanRollback: false}
		assert.False(t, entry.IsRollbackable())
	})

	t.Run("NotYetExecuted", func(t *testing.T) {
		entry := AutomationLog{Status: AutomationLogStatusPending, CanRollback: true}
		assert.False(t, entry.IsRollbackable())
	})

	t.Run("AlreadyRolledBack", func(t *testing.T) {
		rolledBack := utils.UTCNow()
		entry := AutomationLog{
			Status:       AutomationLogStatusExecuted,
			CanRollback:  true,
			RolledBackAt: &rolledBack,
		}
		assert.False(t, entry.IsRollbackable())
	})
}
