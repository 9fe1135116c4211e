package models

import (
	"time"
)

// Payout : Recorded payout fact. Terminal once written; the actual Mobile
// Money transfer is an external concern reported back as settled/failed on
// withdrawals only. Type is either a seller release or a buyer refund.
type Payout struct {
	ID          int64     `json:"id" bun:",pk,autoincrement"`
	InvoiceID   int64     `json:"invoice_id" bun:",notnull"`
	MilestoneID int64     `json:"milestone_id,omitempty" bun:",nullzero"`
	TokenID     int64     `json:"token_id,omitempty" bun:",nullzero"`
	Type        string    `json:"type" bun:",notnull"`
	GrossAmount int64     `json:"gross_amount" bun:",notnull"`
	Fee         int64     `json:"fee" bun:",notnull"`
	NetAmount   int64     `json:"net_amount" bun:",notnull"`
	CreatedAt   time.Time `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
