package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zangapay/escrow.go/common"
	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib/responses"
)

func TestConsumeReleaseToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)
	payInvoice(t, svc, invoice)

	_, code, err := svc.MarkDelivered(ctx, invoice.ID, seller.ID)
	require.NoError(t, err)

	// a mistyped code releases nothing
	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, "deadbeef", 0)
	assert.ErrorIs(t, err, responses.InvalidCodeError)
	_, err = svc.ConsumeReleaseToken(ctx, "ZP-NOSUCHDEAL", code, 0)
	assert.ErrorIs(t, err, responses.InvalidCodeError)

	payout, err := svc.ConsumeReleaseToken(ctx, invoice.Number, code, 0)
	require.NoError(t, err)
	assert.Equal(t, common.PayoutTypeRelease, payout.Type)
	assert.Equal(t, int64(100000), payout.GrossAmount)
	assert.Equal(t, int64(3000), payout.Fee)
	assert.Equal(t, int64(97000), payout.NetAmount)

	found, err := svc.FindInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStateCompleted, found.State)
	assert.False(t, found.CompletedAt.IsZero())

	// the code is one-time
	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, code, 0)
	assert.ErrorIs(t, err, responses.AlreadyConsumedError)
}

func TestConsumeReleaseTokenExactlyOnce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)
	payInvoice(t, svc, invoice)
	_, code, err := svc.MarkDelivered(ctx, invoice.ID, seller.ID)
	require.NoError(t, err)

	// a buyer double-tapping the confirm button releases exactly once
	const attempts = 8
	results := make(chan error, attempts)
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			_, err := svc.ConsumeReleaseToken(ctx, invoice.Number, code, 0)
			results <- err
		}()
	}
	start.Done()
	done.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, responses.AlreadyConsumedError)
		}
	}
	assert.Equal(t, 1, succeeded)

	payouts, err := svc.DB.NewSelect().Model((*models.Payout)(nil)).
		Where("invoice_id = ?", invoice.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, payouts)
}

func TestReissueRevokesPreviousToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)
	payInvoice(t, svc, invoice)

	_, oldCode, err := svc.MarkDelivered(ctx, invoice.ID, seller.ID)
	require.NoError(t, err)

	// the buyer lost the code, the admin re-sends a fresh one
	newCode, err := svc.IssueReleaseToken(ctx, invoice.ID, 0)
	require.NoError(t, err)
	require.NotEqual(t, oldCode, newCode)

	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, oldCode, 0)
	assert.ErrorIs(t, err, responses.InvalidCodeError)

	payout, err := svc.ConsumeReleaseToken(ctx, invoice.Number, newCode, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(97000), payout.NetAmount)
}

func TestIssueReleaseTokenGuards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")

	// a full-payment invoice must be delivered before a code exists to re-send
	full := createFullInvoice(t, svc, seller.ID, 100000)
	_, err := svc.IssueReleaseToken(ctx, full.ID, 0)
	assert.ErrorIs(t, err, responses.InvalidStateError)
	payInvoice(t, svc, full)
	_, err = svc.IssueReleaseToken(ctx, full.ID, 0)
	assert.ErrorIs(t, err, responses.InvalidStateError)

	// an installment invoice never carries an invoice-scope code
	installment := createInstallmentInvoice(t, svc, seller.ID, 30000, 70000)
	payInvoice(t, svc, installment)
	_, err = svc.IssueReleaseToken(ctx, installment.ID, 0)
	assert.ErrorIs(t, err, responses.InvalidStateError)

	milestones, err := svc.MilestonesFor(ctx, installment.ID)
	require.NoError(t, err)
	first, second := milestones[0], milestones[1]

	// nor a code for a milestone that is not completed
	_, err = svc.IssueReleaseToken(ctx, installment.ID, second.ID)
	assert.ErrorIs(t, err, responses.InvalidStateError)
	// nor for somebody else's milestone
	_, err = svc.IssueReleaseToken(ctx, full.ID, first.ID)
	assert.ErrorIs(t, err, responses.BadArgumentsError)

	_, oldCode, err := svc.MarkMilestoneComplete(ctx, installment.ID, first.ID, seller.ID)
	require.NoError(t, err)

	newCode, err := svc.IssueReleaseToken(ctx, installment.ID, first.ID)
	require.NoError(t, err)
	_, err = svc.ConsumeReleaseToken(ctx, installment.Number, oldCode, first.ID)
	assert.ErrorIs(t, err, responses.InvalidCodeError)
	payout, err := svc.ConsumeReleaseToken(ctx, installment.Number, newCode, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), payout.GrossAmount)
}

func TestIssueReleaseTokenFrozenWhileDisputed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)
	payInvoice(t, svc, invoice)
	_, _, err := svc.MarkDelivered(ctx, invoice.ID, seller.ID)
	require.NoError(t, err)

	_, err = svc.OpenDispute(ctx, invoice.ID, 0, common.DisputeOpenedByBuyer, "damaged goods")
	require.NoError(t, err)

	_, err = svc.IssueReleaseToken(ctx, invoice.ID, 0)
	assert.ErrorIs(t, err, responses.FrozenError)
}

func TestConsumeReleaseTokenCompletedEvent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := createFullInvoice(t, svc, seller.ID, 100000)
	payInvoice(t, svc, invoice)
	_, code, err := svc.MarkDelivered(ctx, invoice.ID, seller.ID)
	require.NoError(t, err)

	event := awaitEvent(t, svc, common.EventInvoiceCompleted, func() {
		_, err := svc.ConsumeReleaseToken(ctx, invoice.Number, code, 0)
		require.NoError(t, err)
	})
	assert.Equal(t, invoice.ID, event.InvoiceID)
	assert.Equal(t, int64(97000), event.NetAmount)
}
