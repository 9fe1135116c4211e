package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ReleaseToken : One-time release authorization. Only a SHA-256 hash of the
// bearer code is stored; the plain code exists once, in the issue response.
// At most one unconsumed token per (invoice, milestone) scope at a time.
type ReleaseToken struct {
	ID          int64        `json:"id" bun:",pk,autoincrement"`
	InvoiceID   int64        `json:"invoice_id" bun:",notnull"`
	MilestoneID int64        `json:"milestone_id,omitempty" bun:",nullzero"`
	CodeHash    string       `json:"-" bun:",unique,notnull"`
	Consumed    bool         `json:"consumed" bun:",notnull,default:false"`
	Revoked     bool         `json:"-" bun:",notnull,default:false"`
	IssuedAt    time.Time    `json:"issued_at" bun:",nullzero,notnull,default:current_timestamp"`
	ConsumedAt  bun.NullTime `json:"consumed_at"`
}
