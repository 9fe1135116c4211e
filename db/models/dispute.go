package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/zangapay/escrow.go/common"
)

// Dispute : Arbitration record freezing release on its scope. Never deleted;
// resolution appends a terminal state. AdminToken grants moderation access to
// the dispute thread without a platform account.
type Dispute struct {
	ID          int64        `json:"id" bun:",pk,autoincrement"`
	InvoiceID   int64        `json:"invoice_id" bun:",notnull"`
	MilestoneID int64        `json:"milestone_id,omitempty" bun:",nullzero"`
	OpenedBy    string       `json:"opened_by" bun:",notnull"`
	Reason      string       `json:"reason" bun:",notnull"`
	State       string       `json:"state" bun:",notnull,default:'open'"`
	AdminToken  string       `json:"-" bun:",unique,notnull"`
	ResolvedAt  bun.NullTime `json:"resolved_at"`
	CreatedAt   time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   bun.NullTime `json:"updated_at"`
}

func (d *Dispute) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		d.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Dispute)(nil)

func (d *Dispute) Open() bool {
	return d.State == common.DisputeStateOpen
}

// TerminalStateFor maps an arbitration outcome to the dispute's terminal state.
func TerminalStateFor(outcome string) string {
	if outcome == common.DisputeOutcomeBuyer {
		return common.DisputeStateResolvedBuyer
	}
	return common.DisputeStateResolvedSeller
}
