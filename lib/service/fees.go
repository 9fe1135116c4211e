package service

// CalcFee returns the platform fee for a gross amount at the given rate in
// basis points. Rounding is toward zero so the platform never over-charges.
func CalcFee(amount int64, bps int) int64 {
	return amount * int64(bps) / 10000
}

// ServiceFee is the fee withheld from a release or refund payout.
func (svc *EscrowService) ServiceFee(amount int64) int64 {
	return CalcFee(amount, svc.Config.ServiceFeeBps)
}

// CommissionFor is the referral commission earned on a completed invoice.
func (svc *EscrowService) CommissionFor(invoiceAmount int64) int64 {
	return CalcFee(invoiceAmount, svc.Config.CommissionRateBps)
}
