package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ReferralEarning : Commission credited to a referrer for one completed
// invoice. The unique constraint on invoice_id is what makes commission
// crediting idempotent.
type ReferralEarning struct {
	ID             int64     `json:"id" bun:",pk,autoincrement"`
	ReferrerID     int64     `json:"referrer_id" bun:",notnull"`
	ReferredUserID int64     `json:"referred_user_id" bun:",notnull"`
	InvoiceID      int64     `json:"invoice_id" bun:",unique,notnull"`
	InvoiceAmount  int64     `json:"invoice_amount" bun:",notnull"`
	Amount         int64     `json:"amount" bun:",notnull"`
	CreatedAt      time.Time `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}

// ReferralBalance : Accruing commission balance, one row per referrer.
// Mutated only with conditional updates inside the same transaction as the
// earning or withdrawal write.
type ReferralBalance struct {
	ReferrerID int64        `json:"referrer_id" bun:",pk"`
	Balance    int64        `json:"balance" bun:",notnull,default:0"`
	UpdatedAt  bun.NullTime `json:"updated_at"`
}
