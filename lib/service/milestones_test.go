package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zangapay/escrow.go/common"
	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib/responses"
)

func TestMarkMilestoneCompleteOrdering(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createInstallmentInvoice(t, svc, seller.ID, 30000, 70000)
	payInvoice(t, svc, invoice)

	milestones, err := svc.MilestonesFor(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	first, second := milestones[0], milestones[1]

	// the second installment cannot complete before the first is released
	_, _, err = svc.MarkMilestoneComplete(ctx, invoice.ID, second.ID, seller.ID)
	assert.ErrorIs(t, err, responses.SequenceViolationError)

	_, code, err := svc.MarkMilestoneComplete(ctx, invoice.ID, first.ID, seller.ID)
	require.NoError(t, err)

	// completed is not released yet
	_, _, err = svc.MarkMilestoneComplete(ctx, invoice.ID, second.ID, seller.ID)
	assert.ErrorIs(t, err, responses.SequenceViolationError)

	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, code, first.ID)
	require.NoError(t, err)

	_, _, err = svc.MarkMilestoneComplete(ctx, invoice.ID, second.ID, seller.ID)
	require.NoError(t, err)
}

func TestInstallmentLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createInstallmentInvoice(t, svc, seller.ID, 30000, 70000)
	payInvoice(t, svc, invoice)

	milestones, err := svc.MilestonesFor(ctx, invoice.ID)
	require.NoError(t, err)

	for i, milestone := range milestones {
		completed, code, err := svc.MarkMilestoneComplete(ctx, invoice.ID, milestone.ID, seller.ID)
		require.NoError(t, err)
		assert.Equal(t, common.MilestoneStateCompleted, completed.State)

		// the milestone code cannot release the whole invoice
		_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, code, 0)
		assert.ErrorIs(t, err, responses.InvalidCodeError)

		payout, err := svc.ConsumeReleaseToken(ctx, invoice.Number, code, milestone.ID)
		require.NoError(t, err)
		assert.Equal(t, milestone.Amount, payout.GrossAmount)
		assert.Equal(t, svc.ServiceFee(milestone.Amount), payout.Fee)

		found, err := svc.FindInvoice(ctx, invoice.ID)
		require.NoError(t, err)
		if i < len(milestones)-1 {
			assert.Equal(t, common.InvoiceStatePaid, found.State)
		} else {
			// releasing the last installment completes the deal
			assert.Equal(t, common.InvoiceStateCompleted, found.State)
		}
	}

	milestones, err = svc.MilestonesFor(ctx, invoice.ID)
	require.NoError(t, err)
	for _, milestone := range milestones {
		assert.Equal(t, common.MilestoneStateReleased, milestone.State)
		assert.False(t, milestone.ReleasedAt.IsZero())
	}
}

func TestMarkMilestoneCompleteGuards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	stranger := createTestUser(t, svc, "")

	invoice := createInstallmentInvoice(t, svc, seller.ID, 30000, 70000)
	milestones, err := svc.MilestonesFor(ctx, invoice.ID)
	require.NoError(t, err)
	first := milestones[0]

	// unpaid invoice
	_, _, err = svc.MarkMilestoneComplete(ctx, invoice.ID, first.ID, seller.ID)
	assert.ErrorIs(t, err, responses.InvalidStateError)

	payInvoice(t, svc, invoice)

	_, _, err = svc.MarkMilestoneComplete(ctx, invoice.ID, first.ID, stranger.ID)
	assert.ErrorIs(t, err, responses.UnauthorizedError)

	// a milestone belonging to another invoice is rejected
	other := createInstallmentInvoice(t, svc, seller.ID, 10000)
	payInvoice(t, svc, other)
	var otherMilestones []models.Milestone
	otherMilestones, err = svc.MilestonesFor(ctx, other.ID)
	require.NoError(t, err)
	_, _, err = svc.MarkMilestoneComplete(ctx, invoice.ID, otherMilestones[0].ID, seller.ID)
	assert.ErrorIs(t, err, responses.BadArgumentsError)

	// full-payment invoices have no milestone path
	full := createFullInvoice(t, svc, seller.ID, 10000)
	payInvoice(t, svc, full)
	_, _, err = svc.MarkMilestoneComplete(ctx, full.ID, first.ID, seller.ID)
	assert.ErrorIs(t, err, responses.InvalidStateError)
}
