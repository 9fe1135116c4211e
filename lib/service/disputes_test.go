package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zangapay/escrow.go/common"
	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib/responses"
	"github.com/zangapay/escrow.go/lib/service"
)

// payoutGrossTotal sums every payout fact recorded against an invoice. That
// total may never exceed the captured amount.
func payoutGrossTotal(t *testing.T, svc *service.EscrowService, invoiceId int64) int64 {
	t.Helper()
	var total int64
	err := svc.DB.NewSelect().Model((*models.Payout)(nil)).
		ColumnExpr("COALESCE(SUM(gross_amount), 0)").
		Where("invoice_id = ?", invoiceId).
		Scan(context.Background(), &total)
	require.NoError(t, err)
	return total
}

func TestOpenDisputeGuards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)

	_, err := svc.OpenDispute(ctx, invoice.ID, 0, "lawyer", "not delivered")
	assert.ErrorIs(t, err, responses.BadArgumentsError)

	// nothing in escrow yet, nothing to dispute
	_, err = svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedByBuyer, "not delivered")
	assert.ErrorIs(t, err, responses.InvalidStateError)

	payInvoice(t, svc, invoice)

	dispute, err := svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedByBuyer, "not delivered")
	require.NoError(t, err)
	assert.Equal(t, common.DisputeStateOpen, dispute.State)
	assert.NotEmpty(t, dispute.AdminToken)

	// one open dispute per scope
	_, err = svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedBySeller, "buyer is wrong")
	assert.ErrorIs(t, err, responses.AlreadyOpenError)

	found, err := svc.FindDisputeByAdminToken(ctx, dispute.AdminToken)
	require.NoError(t, err)
	assert.Equal(t, dispute.ID, found.ID)
}

func TestDisputeFreezesRelease(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)
	payInvoice(t, svc, invoice)

	_, code, err := svc.MarkDelivered(ctx, invoice.ID, seller.ID)
	require.NoError(t, err)

	_, err = svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedByBuyer, "damaged goods")
	require.NoError(t, err)

	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, code, 0)
	assert.ErrorIs(t, err, responses.FrozenError)

	found, err := svc.FindInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStateDisputed, found.State)
}

func TestResolveDisputeForSeller(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)
	payInvoice(t, svc, invoice)

	_, oldCode, err := svc.MarkDelivered(ctx, invoice.ID, seller.ID)
	require.NoError(t, err)
	dispute, err := svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedByBuyer, "damaged goods")
	require.NoError(t, err)

	// the seller wins: the invoice thaws back to delivered with a fresh code
	event := awaitEvent(t, svc, common.EventTokenIssued, func() {
		resolved, err := svc.ResolveDispute(ctx, dispute.ID, common.DisputeOutcomeSeller)
		require.NoError(t, err)
		assert.Equal(t, common.DisputeStateResolvedSeller, resolved.State)
		assert.False(t, resolved.ResolvedAt.IsZero())
	})
	require.NotEmpty(t, event.ReleaseCode)

	found, err := svc.FindInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStateDelivered, found.State)

	// the pre-dispute code died with the freeze
	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, oldCode, 0)
	assert.ErrorIs(t, err, responses.InvalidCodeError)

	payout, err := svc.ConsumeReleaseToken(ctx, invoice.Number, event.ReleaseCode, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(97000), payout.NetAmount)
}

func TestResolveDisputeForBuyer(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)
	payInvoice(t, svc, invoice)

	dispute, err := svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedByBuyer, "never shipped")
	require.NoError(t, err)

	event := awaitEvent(t, svc, common.EventDisputeResolved, func() {
		resolved, err := svc.ResolveDispute(ctx, dispute.ID, common.DisputeOutcomeBuyer)
		require.NoError(t, err)
		assert.Equal(t, common.DisputeStateResolvedBuyer, resolved.State)
	})
	// the refund is net of the platform fee
	assert.Equal(t, common.DisputeOutcomeBuyer, event.Outcome)
	assert.Equal(t, int64(100000), event.Amount)
	assert.Equal(t, int64(3000), event.Fee)
	assert.Equal(t, int64(97000), event.NetAmount)

	found, err := svc.FindInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStateRefunded, found.State)
}

func TestResolveDisputeIdempotency(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)
	payInvoice(t, svc, invoice)

	dispute, err := svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedByBuyer, "never shipped")
	require.NoError(t, err)

	_, err = svc.ResolveDispute(ctx, dispute.ID, common.DisputeOutcomeBuyer)
	require.NoError(t, err)

	// retrying the same verdict is a no-op
	resolved, err := svc.ResolveDispute(ctx, dispute.ID, common.DisputeOutcomeBuyer)
	require.NoError(t, err)
	assert.Equal(t, common.DisputeStateResolvedBuyer, resolved.State)

	// flipping the verdict is not
	_, err = svc.ResolveDispute(ctx, dispute.ID, common.DisputeOutcomeSeller)
	assert.ErrorIs(t, err, responses.AlreadyResolvedError)
}

func TestMilestoneDispute(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createInstallmentInvoice(t, svc, seller.ID, 30000, 70000)
	payInvoice(t, svc, invoice)

	milestones, err := svc.MilestonesFor(ctx, invoice.ID)
	require.NoError(t, err)
	first := milestones[0]

	_, code, err := svc.MarkMilestoneComplete(ctx, invoice.ID, first.ID, seller.ID)
	require.NoError(t, err)

	dispute, err := svc.OpenDispute(ctx, invoice.ID, first.ID, common.DisputeOpenedByBuyer, "half done")
	require.NoError(t, err)

	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, code, first.ID)
	assert.ErrorIs(t, err, responses.FrozenError)

	// the buyer wins: nothing was released yet, so the whole amount comes
	// back and the deal ends
	event := awaitEvent(t, svc, common.EventDisputeResolved, func() {
		resolved, err := svc.ResolveDispute(ctx, dispute.ID, common.DisputeOutcomeBuyer)
		require.NoError(t, err)
		assert.Equal(t, common.DisputeStateResolvedBuyer, resolved.State)
	})
	assert.Equal(t, int64(100000), event.Amount)
	assert.Equal(t, int64(97000), event.NetAmount)

	found, err := svc.FindInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStateRefunded, found.State)
	assert.Equal(t, int64(100000), payoutGrossTotal(t, svc, invoice.ID))

	// the outstanding milestone code died with the deal
	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, code, first.ID)
	assert.ErrorIs(t, err, responses.InvalidCodeError)
}

func TestInvoiceDisputeRefundsOnlyEscrowedAmount(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createInstallmentInvoice(t, svc, seller.ID, 30000, 70000)
	payInvoice(t, svc, invoice)

	milestones, err := svc.MilestonesFor(ctx, invoice.ID)
	require.NoError(t, err)
	first := milestones[0]

	// the first installment is released and paid out to the seller
	_, code, err := svc.MarkMilestoneComplete(ctx, invoice.ID, first.ID, seller.ID)
	require.NoError(t, err)
	released, err := svc.ConsumeReleaseToken(ctx, invoice.Number, code, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), released.GrossAmount)

	// then the buyer disputes the whole deal and wins
	dispute, err := svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedByBuyer, "seller vanished")
	require.NoError(t, err)
	event := awaitEvent(t, svc, common.EventDisputeResolved, func() {
		_, err := svc.ResolveDispute(ctx, dispute.ID, common.DisputeOutcomeBuyer)
		require.NoError(t, err)
	})

	// the seller keeps the released 30,000; only the 70,000 still in escrow
	// is refunded, so payouts add up to exactly the captured amount
	assert.Equal(t, int64(70000), event.Amount)
	assert.Equal(t, int64(2100), event.Fee)
	assert.Equal(t, int64(67900), event.NetAmount)
	assert.Equal(t, int64(100000), payoutGrossTotal(t, svc, invoice.ID))

	found, err := svc.FindInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStateRefunded, found.State)
}

func TestMilestoneDisputeAfterRelease(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createInstallmentInvoice(t, svc, seller.ID, 30000, 70000)
	payInvoice(t, svc, invoice)

	milestones, err := svc.MilestonesFor(ctx, invoice.ID)
	require.NoError(t, err)
	first, second := milestones[0], milestones[1]

	_, code, err := svc.MarkMilestoneComplete(ctx, invoice.ID, first.ID, seller.ID)
	require.NoError(t, err)
	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, code, first.ID)
	require.NoError(t, err)

	_, secondCode, err := svc.MarkMilestoneComplete(ctx, invoice.ID, second.ID, seller.ID)
	require.NoError(t, err)
	dispute, err := svc.OpenDispute(ctx, invoice.ID, second.ID, common.DisputeOpenedByBuyer, "phase two unusable")
	require.NoError(t, err)

	event := awaitEvent(t, svc, common.EventDisputeResolved, func() {
		_, err := svc.ResolveDispute(ctx, dispute.ID, common.DisputeOutcomeBuyer)
		require.NoError(t, err)
	})
	// milestone one's payout stands; milestone two's escrow is refunded
	assert.Equal(t, int64(70000), event.Amount)
	assert.Equal(t, int64(100000), payoutGrossTotal(t, svc, invoice.ID))

	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, secondCode, second.ID)
	assert.ErrorIs(t, err, responses.InvalidCodeError)
}

func TestInvoiceDisputeFreezesMilestoneRelease(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createInstallmentInvoice(t, svc, seller.ID, 30000, 70000)
	payInvoice(t, svc, invoice)

	milestones, err := svc.MilestonesFor(ctx, invoice.ID)
	require.NoError(t, err)
	first := milestones[0]

	_, code, err := svc.MarkMilestoneComplete(ctx, invoice.ID, first.ID, seller.ID)
	require.NoError(t, err)

	// an invoice-level dispute freezes every milestone of the invoice
	_, err = svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedByBuyer, "seller vanished")
	require.NoError(t, err)

	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, code, first.ID)
	assert.ErrorIs(t, err, responses.FrozenError)
	assert.Equal(t, int64(0), payoutGrossTotal(t, svc, invoice.ID))
}

func TestMilestoneDisputeResolvedForSeller(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createInstallmentInvoice(t, svc, seller.ID, 30000, 70000)
	payInvoice(t, svc, invoice)

	milestones, err := svc.MilestonesFor(ctx, invoice.ID)
	require.NoError(t, err)
	first := milestones[0]

	_, _, err = svc.MarkMilestoneComplete(ctx, invoice.ID, first.ID, seller.ID)
	require.NoError(t, err)
	dispute, err := svc.OpenDispute(ctx, invoice.ID, first.ID, common.DisputeOpenedByBuyer, "half done")
	require.NoError(t, err)

	// the milestone thaws back to completed with a fresh code
	event := awaitEvent(t, svc, common.EventTokenIssued, func() {
		_, err := svc.ResolveDispute(ctx, dispute.ID, common.DisputeOutcomeSeller)
		require.NoError(t, err)
	})
	require.NotEmpty(t, event.ReleaseCode)
	assert.Equal(t, first.ID, event.MilestoneID)

	payout, err := svc.ConsumeReleaseToken(ctx, invoice.Number, event.ReleaseCode, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), payout.GrossAmount)
}
