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

// completeInvoiceFor runs a full-payment deal end to end for the given seller.
func completeInvoiceFor(t *testing.T, svc *service.EscrowService, sellerId, amount int64) *models.Invoice {
	t.Helper()
	ctx := context.Background()
	invoice := createFullInvoice(t, svc, sellerId, amount)
	payInvoice(t, svc, invoice)
	_, code, err := svc.MarkDelivered(ctx, invoice.ID, sellerId)
	require.NoError(t, err)
	_, err = svc.ConsumeReleaseToken(ctx, invoice.Number, code, 0)
	require.NoError(t, err)
	return invoice
}

func TestCreditCommission(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	referrer := createTestUser(t, svc, "")
	seller := createTestUser(t, svc, referrer.ReferralCode)
	invoice := completeInvoiceFor(t, svc, seller.ID, 1000000)

	earning, err := svc.CreditCommission(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, earning)
	// 50 bps of the invoice amount
	assert.Equal(t, int64(5000), earning.Amount)
	assert.Equal(t, referrer.ID, earning.ReferrerID)
	assert.Equal(t, seller.ID, earning.ReferredUserID)

	balance, err := svc.ReferralBalanceFor(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	// a replayed completion event credits at most once
	earning, err = svc.CreditCommission(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Nil(t, earning)

	balance, err = svc.ReferralBalanceFor(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	earnings, err := svc.EarningsFor(ctx, referrer.ID)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, invoice.ID, earnings[0].InvoiceID)
}

func TestCreditCommissionWithoutReferrer(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := createTestUser(t, svc, "")
	invoice := completeInvoiceFor(t, svc, seller.ID, 1000000)

	earning, err := svc.CreditCommission(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Nil(t, earning)
}

func TestRequestWithdrawal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	referrer := createTestUser(t, svc, "")
	seller := createTestUser(t, svc, referrer.ReferralCode)
	invoice := completeInvoiceFor(t, svc, seller.ID, 1000000)
	_, err := svc.CreditCommission(ctx, invoice.ID)
	require.NoError(t, err)

	_, err = svc.RequestWithdrawal(ctx, referrer.ID, 1500, "+237670000001")
	assert.ErrorIs(t, err, responses.BelowMinimumError)

	_, err = svc.RequestWithdrawal(ctx, referrer.ID, 6000, "+237670000001")
	assert.ErrorIs(t, err, responses.InsufficientBalanceError)

	// neither rejection touched the balance
	balance, err := svc.ReferralBalanceFor(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	withdrawal, err := svc.RequestWithdrawal(ctx, referrer.ID, 3000, "+237670000001")
	require.NoError(t, err)
	assert.Equal(t, common.WithdrawalStatePending, withdrawal.State)
	assert.NotEmpty(t, withdrawal.Reference)

	// the balance is debited up front
	balance, err = svc.ReferralBalanceFor(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), balance)
}

func TestSettleWithdrawal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	referrer := createTestUser(t, svc, "")
	seller := createTestUser(t, svc, referrer.ReferralCode)
	invoice := completeInvoiceFor(t, svc, seller.ID, 1000000)
	_, err := svc.CreditCommission(ctx, invoice.ID)
	require.NoError(t, err)

	withdrawal, err := svc.RequestWithdrawal(ctx, referrer.ID, 5000, "+237670000001")
	require.NoError(t, err)

	settled, err := svc.SettleWithdrawal(ctx, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, common.WithdrawalStatePaid, settled.State)
	assert.False(t, settled.SettledAt.IsZero())

	// settling is terminal
	_, err = svc.SettleWithdrawal(ctx, withdrawal.ID)
	assert.ErrorIs(t, err, responses.InvalidStateError)
	_, err = svc.FailWithdrawal(ctx, withdrawal.ID, "too late")
	assert.ErrorIs(t, err, responses.InvalidStateError)
}

func TestFailWithdrawalRestoresBalance(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	referrer := createTestUser(t, svc, "")
	seller := createTestUser(t, svc, referrer.ReferralCode)
	invoice := completeInvoiceFor(t, svc, seller.ID, 1000000)
	_, err := svc.CreditCommission(ctx, invoice.ID)
	require.NoError(t, err)

	withdrawal, err := svc.RequestWithdrawal(ctx, referrer.ID, 5000, "+237670000001")
	require.NoError(t, err)

	failed, err := svc.FailWithdrawal(ctx, withdrawal.ID, "momo transfer rejected")
	require.NoError(t, err)
	assert.Equal(t, common.WithdrawalStateFailed, failed.State)
	assert.Equal(t, "momo transfer rejected", failed.FailReason)

	balance, err := svc.ReferralBalanceFor(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	withdrawals, err := svc.WithdrawalsFor(ctx, referrer.ID)
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, common.WithdrawalStateFailed, withdrawals[0].State)
}
