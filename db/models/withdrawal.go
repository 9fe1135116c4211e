package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Withdrawal : Commission withdrawal request. The balance is debited when the
// request is created, not when it settles, and credited back on failure.
type Withdrawal struct {
	ID           int64        `json:"id" bun:",pk,autoincrement"`
	Reference    string       `json:"reference" bun:",unique,notnull"`
	ReferrerID   int64        `json:"referrer_id" bun:",notnull"`
	Amount       int64        `json:"amount" bun:",notnull" validate:"gt=0"`
	PayoutNumber string       `json:"payout_number" bun:",notnull"`
	State        string       `json:"state" bun:",notnull,default:'pending'"`
	FailReason   string       `json:"fail_reason,omitempty" bun:",nullzero"`
	SettledAt    bun.NullTime `json:"settled_at"`
	CreatedAt    time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt    bun.NullTime `json:"updated_at"`
}

func (w *Withdrawal) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		w.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Withdrawal)(nil)
