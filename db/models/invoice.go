package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/zangapay/escrow.go/common"
)

// Invoice : Escrow invoice model. The invoice is the aggregate root: milestones,
// release tokens, disputes and payouts all reference it by id only.
type Invoice struct {
	ID          int64        `json:"id" bun:",pk,autoincrement"`
	Number      string       `json:"number" bun:",unique,notnull"`
	UserID      int64        `json:"user_id" bun:",notnull"`
	User        *User        `json:"-" bun:"rel:belongs-to,join:user_id=id"`
	BuyerEmail  string       `json:"buyer_email" bun:",notnull" validate:"required,email"`
	Amount      int64        `json:"amount" bun:",notnull" validate:"gt=0"`
	Currency    string       `json:"currency" bun:",notnull"`
	Memo        string       `json:"memo" bun:",nullzero"`
	PaymentType string       `json:"payment_type" bun:",notnull"`
	State       string       `json:"state" bun:",notnull,default:'pending'"`
	// PriorState remembers the state an invoice was in when a dispute froze it,
	// so a seller-favored resolution can put it back where it was.
	PriorState  string       `json:"-" bun:",nullzero"`
	ExpiresAt   bun.NullTime `json:"expires_at" bun:",nullzero"`
	PaidAt      bun.NullTime `json:"paid_at"`
	DeliveredAt bun.NullTime `json:"delivered_at"`
	CompletedAt bun.NullTime `json:"completed_at"`
	// paid invoices are never hard-deleted, only archived
	ArchivedAt bun.NullTime `json:"-"`
	CreatedAt  time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt  bun.NullTime `json:"updated_at"`
}

func (i *Invoice) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		i.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Invoice)(nil)

var invoiceTransitions = map[string][]string{
	common.InvoiceStatePending:       {common.InvoiceStatePaid, common.InvoiceStateExpired},
	common.InvoiceStatePaid:          {common.InvoiceStateDelivered, common.InvoiceStateCompleted, common.InvoiceStateDisputed},
	common.InvoiceStateDelivered:     {common.InvoiceStateCompleted, common.InvoiceStateDisputed},
	common.InvoiceStateDisputed:      {common.InvoiceStatePaid, common.InvoiceStateDelivered, common.InvoiceStateRefundPending},
	common.InvoiceStateRefundPending: {common.InvoiceStateRefunded},
}

// CanTransition reports whether moving the invoice from its current state to
// the target state is a legal transition.
func (i *Invoice) CanTransition(to string) bool {
	for _, next := range invoiceTransitions[i.State] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (i *Invoice) IsTerminal() bool {
	return len(invoiceTransitions[i.State]) == 0
}

// IsExpired reports whether an unpaid invoice is past its payability window.
func (i *Invoice) IsExpired(now time.Time) bool {
	return i.State == common.InvoiceStatePending && !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt.Time)
}

// Disputable reports whether a dispute may be opened on the invoice itself.
func (i *Invoice) Disputable() bool {
	return i.State == common.InvoiceStatePaid || i.State == common.InvoiceStateDelivered
}
