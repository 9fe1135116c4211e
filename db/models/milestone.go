package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/zangapay/escrow.go/common"
)

// Milestone : One sequential portion of an installment invoice.
// Ordinals are 1..N and gapless within an invoice.
type Milestone struct {
	ID        int64        `json:"id" bun:",pk,autoincrement"`
	InvoiceID int64        `json:"invoice_id" bun:",notnull"`
	Ordinal   int          `json:"ordinal" bun:",notnull"`
	Label     string       `json:"label" bun:",nullzero"`
	Amount    int64        `json:"amount" bun:",notnull" validate:"gt=0"`
	State     string       `json:"state" bun:",notnull,default:'pending'"`
	// PriorState plays the same role as on Invoice for disputed milestones.
	PriorState  string       `json:"-" bun:",nullzero"`
	Deadline    bun.NullTime `json:"deadline" bun:",nullzero"`
	CompletedAt bun.NullTime `json:"completed_at"`
	ReleasedAt  bun.NullTime `json:"released_at"`
	CreatedAt   time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   bun.NullTime `json:"updated_at"`
}

func (m *Milestone) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		m.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Milestone)(nil)

// Transitions are monotonic: pending -> completed -> released, with disputed
// reachable from pending or completed and resolvable back via PriorState.
var milestoneTransitions = map[string][]string{
	common.MilestoneStatePending:   {common.MilestoneStateCompleted, common.MilestoneStateDisputed},
	common.MilestoneStateCompleted: {common.MilestoneStateReleased, common.MilestoneStateDisputed},
	common.MilestoneStateDisputed:  {common.MilestoneStatePending, common.MilestoneStateCompleted},
}

func (m *Milestone) CanTransition(to string) bool {
	for _, next := range milestoneTransitions[m.State] {
		if next == to {
			return true
		}
	}
	return false
}

// Disputable reports whether a dispute may be opened on the milestone.
func (m *Milestone) Disputable() bool {
	return m.State == common.MilestoneStatePending || m.State == common.MilestoneStateCompleted
}
