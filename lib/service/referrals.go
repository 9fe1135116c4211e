package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/zangapay/escrow.go/common"
	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib/responses"
)

// CreditCommission credits the seller's referrer for a completed invoice.
// Idempotent on invoice id: the earning row has a unique constraint, so a
// replayed completion event credits at most once.
func (svc *EscrowService) CreditCommission(ctx context.Context, invoiceId int64) (*models.ReferralEarning, error) {
	invoice, err := svc.FindInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	seller, err := svc.FindUser(ctx, invoice.UserID)
	if err != nil {
		return nil, err
	}
	if seller.ReferrerID == 0 {
		return nil, nil
	}

	exists, err := svc.DB.NewSelect().Model((*models.ReferralEarning)(nil)).
		Where("invoice_id = ?", invoice.ID).Count(ctx)
	if err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, nil
	}

	earning := &models.ReferralEarning{
		ReferrerID:     seller.ReferrerID,
		ReferredUserID: seller.ID,
		InvoiceID:      invoice.ID,
		InvoiceAmount:  invoice.Amount,
		Amount:         svc.CommissionFor(invoice.Amount),
	}

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().Model(earning).
			On("CONFLICT (invoice_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		// someone else credited the same invoice concurrently
		if rows, _ := res.RowsAffected(); rows == 0 {
			earning = nil
			return nil
		}
		return creditBalance(ctx, tx, seller.ReferrerID, earning.Amount)
	})
	if err != nil {
		return nil, err
	}
	if earning == nil {
		return nil, nil
	}

	svc.publishEvent(ctx, common.Event{
		Name:          common.EventCommissionCredited,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		UserID:        seller.ReferrerID,
		Amount:        earning.Amount,
	})
	return earning, nil
}

func creditBalance(ctx context.Context, tx bun.Tx, referrerId, amount int64) error {
	res, err := tx.NewUpdate().Model((*models.ReferralBalance)(nil)).
		Set("balance = balance + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("referrer_id = ?", referrerId).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		balance := &models.ReferralBalance{ReferrerID: referrerId, Balance: amount}
		if _, err := tx.NewInsert().Model(balance).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (svc *EscrowService) ReferralBalanceFor(ctx context.Context, referrerId int64) (int64, error) {
	var balance models.ReferralBalance
	err := svc.DB.NewSelect().Model(&balance).Where("referrer_id = ?", referrerId).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return balance.Balance, nil
}

func (svc *EscrowService) EarningsFor(ctx context.Context, referrerId int64) ([]models.ReferralEarning, error) {
	var earnings []models.ReferralEarning
	err := svc.DB.NewSelect().Model(&earnings).
		Where("referrer_id = ?", referrerId).
		OrderExpr("id DESC").Limit(100).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return earnings, nil
}

func (svc *EscrowService) WithdrawalsFor(ctx context.Context, referrerId int64) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := svc.DB.NewSelect().Model(&withdrawals).
		Where("referrer_id = ?", referrerId).
		OrderExpr("id DESC").Limit(100).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return withdrawals, nil
}

// RequestWithdrawal debits the referral balance and creates a pending
// withdrawal in one atomic step. Debiting up front instead of on settlement
// prevents double-spends on rapid retries; a later failure credits back.
func (svc *EscrowService) RequestWithdrawal(ctx context.Context, referrerId, amount int64, payoutNumber string) (*models.Withdrawal, error) {
	if amount < svc.Config.MinWithdrawal {
		return nil, responses.BelowMinimumError
	}

	withdrawal := &models.Withdrawal{
		Reference:    uuid.NewString(),
		ReferrerID:   referrerId,
		Amount:       amount,
		PayoutNumber: payoutNumber,
		State:        common.WithdrawalStatePending,
	}

	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*models.ReferralBalance)(nil)).
			Set("balance = balance - ?", amount).
			Set("updated_at = ?", time.Now()).
			Where("referrer_id = ? AND balance >= ?", referrerId, amount).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return responses.InsufficientBalanceError
		}
		_, err = tx.NewInsert().Model(withdrawal).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// SettleWithdrawal records the external payout confirmation.
func (svc *EscrowService) SettleWithdrawal(ctx context.Context, withdrawalId int64) (*models.Withdrawal, error) {
	withdrawal, err := svc.findWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	res, err := svc.DB.NewUpdate().Model(withdrawal).
		Set("state = ?", common.WithdrawalStatePaid).
		Set("settled_at = ?", now).
		Where("id = ? AND state = ?", withdrawal.ID, common.WithdrawalStatePending).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, responses.InvalidStateError
	}
	withdrawal.State = common.WithdrawalStatePaid
	withdrawal.SettledAt = bun.NullTime{Time: now}

	svc.publishEvent(ctx, common.Event{
		Name:         common.EventWithdrawalSettled,
		WithdrawalID: withdrawal.ID,
		UserID:       withdrawal.ReferrerID,
		Amount:       withdrawal.Amount,
	})
	return withdrawal, nil
}

// FailWithdrawal flips a pending withdrawal to failed and restores the
// debited balance in the same transaction.
func (svc *EscrowService) FailWithdrawal(ctx context.Context, withdrawalId int64, reason string) (*models.Withdrawal, error) {
	withdrawal, err := svc.findWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(withdrawal).
			Set("state = ?", common.WithdrawalStateFailed).
			Set("fail_reason = ?", reason).
			Where("id = ? AND state = ?", withdrawal.ID, common.WithdrawalStatePending).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return responses.InvalidStateError
		}
		return creditBalance(ctx, tx, withdrawal.ReferrerID, withdrawal.Amount)
	})
	if err != nil {
		return nil, err
	}
	withdrawal.State = common.WithdrawalStateFailed
	withdrawal.FailReason = reason

	svc.publishEvent(ctx, common.Event{
		Name:         common.EventWithdrawalFailed,
		WithdrawalID: withdrawal.ID,
		UserID:       withdrawal.ReferrerID,
		Amount:       withdrawal.Amount,
	})
	return withdrawal, nil
}

func (svc *EscrowService) findWithdrawal(ctx context.Context, withdrawalId int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := svc.DB.NewSelect().Model(&withdrawal).Where("id = ?", withdrawalId).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}
