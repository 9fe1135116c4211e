package common

import (
	"time"
)

// Event is the payload emitted on every settlement-relevant transition. It
// carries enough identifiers for a notification composer to build a message;
// delivery success is never assumed.
type Event struct {
	Name          string `json:"name"`
	InvoiceID     int64  `json:"invoice_id,omitempty"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	MilestoneID   int64  `json:"milestone_id,omitempty"`
	DisputeID     int64  `json:"dispute_id,omitempty"`
	WithdrawalID  int64  `json:"withdrawal_id,omitempty"`
	UserID        int64  `json:"user_id,omitempty"`
	BuyerEmail    string `json:"buyer_email,omitempty"`
	Outcome       string `json:"outcome,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Fee           int64  `json:"fee,omitempty"`
	NetAmount     int64  `json:"net_amount,omitempty"`
	// ReleaseCode is only set on release_token_issued events; the notification
	// collaborator forwards it to the buyer's channel.
	ReleaseCode string    `json:"release_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
