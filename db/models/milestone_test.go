package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zangapay/escrow.go/common"
	"github.com/zangapay/escrow.go/db/models"
)

func TestMilestoneCanTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		ok   bool
	}{
		{common.MilestoneStatePending, common.MilestoneStateCompleted, true},
		{common.MilestoneStatePending, common.MilestoneStateDisputed, true},
		{common.MilestoneStatePending, common.MilestoneStateReleased, false},
		{common.MilestoneStateCompleted, common.MilestoneStateReleased, true},
		{common.MilestoneStateCompleted, common.MilestoneStateDisputed, true},
		{common.MilestoneStateCompleted, common.MilestoneStatePending, false},
		{common.MilestoneStateDisputed, common.MilestoneStatePending, true},
		{common.MilestoneStateDisputed, common.MilestoneStateCompleted, true},
		{common.MilestoneStateDisputed, common.MilestoneStateReleased, false},
		{common.MilestoneStateReleased, common.MilestoneStateDisputed, false},
	}
	for _, tt := range tests {
		milestone := &models.Milestone{State: tt.from}
		assert.Equal(t, tt.ok, milestone.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestMilestoneDisputable(t *testing.T) {
	assert.True(t, (&models.Milestone{State: common.MilestoneStatePending}).Disputable())
	assert.True(t, (&models.Milestone{State: common.MilestoneStateCompleted}).Disputable())
	assert.False(t, (&models.Milestone{State: common.MilestoneStateDisputed}).Disputable())
	assert.False(t, (&models.Milestone{State: common.MilestoneStateReleased}).Disputable())
}

func TestTerminalStateFor(t *testing.T) {
	assert.Equal(t, common.DisputeStateResolvedBuyer, models.TerminalStateFor(common.DisputeOutcomeBuyer))
	assert.Equal(t, common.DisputeStateResolvedSeller, models.TerminalStateFor(common.DisputeOutcomeSeller))
}
