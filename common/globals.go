package common

const (
	PaymentTypeFull        = "full"
	PaymentTypeInstallment = "installment"

	InvoiceStatePending       = "pending"
	InvoiceStatePaid          = "paid"
	InvoiceStateDelivered     = "delivered"
	InvoiceStateDisputed      = "disputed"
	InvoiceStateRefundPending = "refund_pending"
	InvoiceStateRefunded      = "refunded"
	InvoiceStateExpired       = "expired"
	InvoiceStateCompleted     = "completed"

	MilestoneStatePending   = "pending"
	MilestoneStateCompleted = "completed"
	MilestoneStateReleased  = "released"
	MilestoneStateDisputed  = "disputed"

	DisputeStateOpen           = "open"
	DisputeStateResolvedSeller = "resolved_seller"
	DisputeStateResolvedBuyer  = "resolved_buyer"

	DisputeOutcomeSeller = "seller"
	DisputeOutcomeBuyer  = "buyer"

	DisputeOpenedByBuyer  = "buyer"
	DisputeOpenedBySeller = "seller"

	WithdrawalStatePending = "pending"
	WithdrawalStatePaid    = "paid"
	WithdrawalStateFailed  = "failed"

	PayoutTypeRelease = "release"
	PayoutTypeRefund  = "refund"

	EventInvoicePaid        = "invoice_paid"
	EventInvoiceDisputed    = "invoice_disputed"
	EventInvoiceCompleted   = "invoice_completed"
	EventInvoiceExpired     = "invoice_expired"
	EventMilestoneCompleted = "milestone_completed"
	EventMilestoneReleased  = "milestone_released"
	EventDisputeResolved    = "dispute_resolved"
	EventCommissionCredited = "commission_credited"
	EventTokenIssued        = "release_token_issued"
	EventWithdrawalSettled  = "withdrawal_settled"
	EventWithdrawalFailed   = "withdrawal_failed"
)
