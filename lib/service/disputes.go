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

func (svc *EscrowService) FindDispute(ctx context.Context, disputeId int64) (*models.Dispute, error) {
	var dispute models.Dispute
	err := svc.DB.NewSelect().Model(&dispute).Where("id = ?", disputeId).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (svc *EscrowService) FindDisputeByAdminToken(ctx context.Context, adminToken string) (*models.Dispute, error) {
	var dispute models.Dispute
	err := svc.DB.NewSelect().Model(&dispute).Where("admin_token = ?", adminToken).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// OpenDispute freezes release on the given scope. The freeze is enforced at
// token consumption time; tokens themselves are left untouched. At most one
// open dispute may exist per scope.
func (svc *EscrowService) OpenDispute(ctx context.Context, invoiceId, milestoneId int64, openedBy, reason string) (*models.Dispute, error) {
	if openedBy != common.DisputeOpenedByBuyer && openedBy != common.DisputeOpenedBySeller {
		return nil, responses.BadArgumentsError
	}
	invoice, err := svc.FindInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}

	open, err := svc.hasOpenDispute(ctx, svc.DB, invoiceId, milestoneId)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, responses.AlreadyOpenError
	}

	var milestone *models.Milestone
	if milestoneId != 0 {
		milestone, err = svc.FindMilestone(ctx, milestoneId)
		if err != nil {
			return nil, err
		}
		if milestone.InvoiceID != invoice.ID {
			return nil, responses.BadArgumentsError
		}
		if invoice.State != common.InvoiceStatePaid || !milestone.Disputable() {
			return nil, responses.InvalidStateError
		}
	} else {
		if !invoice.Disputable() {
			return nil, responses.InvalidStateError
		}
	}

	dispute := &models.Dispute{
		InvoiceID:   invoiceId,
		MilestoneID: milestoneId,
		OpenedBy:    openedBy,
		Reason:      reason,
		State:       common.DisputeStateOpen,
		AdminToken:  uuid.NewString(),
	}

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(dispute).Exec(ctx); err != nil {
			return err
		}
		if milestone != nil {
			res, err := tx.NewUpdate().Model(milestone).
				Set("state = ?", common.MilestoneStateDisputed).
				Set("prior_state = ?", milestone.State).
				Where("id = ? AND state = ?", milestone.ID, milestone.State).
				Exec(ctx)
			if err != nil {
				return err
			}
			if rows, _ := res.RowsAffected(); rows == 0 {
				return responses.InvalidStateError
			}
			return nil
		}
		res, err := tx.NewUpdate().Model(invoice).
			Set("state = ?", common.InvoiceStateDisputed).
			Set("prior_state = ?", invoice.State).
			Where("id = ? AND state = ?", invoice.ID, invoice.State).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return responses.InvalidStateError
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.publishEvent(ctx, common.Event{
		Name:          common.EventInvoiceDisputed,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		MilestoneID:   milestoneId,
		DisputeID:     dispute.ID,
		UserID:        invoice.UserID,
		BuyerEmail:    invoice.BuyerEmail,
	})
	return dispute, nil
}

// ResolveDispute closes an open dispute with a terminal outcome. Seller
// outcome unfreezes the scope and re-issues a release token where one was
// live before the freeze. Buyer outcome records a refund payout (net of the
// platform fee) and puts the invoice in its terminal refunded state.
// Retrying with the same outcome is a no-op; a different outcome fails.
func (svc *EscrowService) ResolveDispute(ctx context.Context, disputeId int64, outcome string) (*models.Dispute, error) {
	if outcome != common.DisputeOutcomeSeller && outcome != common.DisputeOutcomeBuyer {
		return nil, responses.BadArgumentsError
	}
	dispute, err := svc.FindDispute(ctx, disputeId)
	if err != nil {
		return nil, err
	}
	if !dispute.Open() {
		if dispute.State == models.TerminalStateFor(outcome) {
			return dispute, nil
		}
		return nil, responses.AlreadyResolvedError
	}

	invoice, err := svc.FindInvoice(ctx, dispute.InvoiceID)
	if err != nil {
		return nil, err
	}
	var milestone *models.Milestone
	if dispute.MilestoneID != 0 {
		milestone, err = svc.FindMilestone(ctx, dispute.MilestoneID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	terminal := models.TerminalStateFor(outcome)
	var code string
	var refund *models.Payout

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(dispute).
			Set("state = ?", terminal).
			Set("resolved_at = ?", now).
			Where("id = ? AND state = ?", dispute.ID, common.DisputeStateOpen).
			Exec(ctx)
		if err != nil {
			return err
		}
		// lost a race against a concurrent resolution
		if rows, _ := res.RowsAffected(); rows == 0 {
			return responses.AlreadyResolvedError
		}

		if outcome == common.DisputeOutcomeSeller {
			return svc.resolveForSeller(ctx, tx, invoice, milestone, &code)
		}
		refund, err = svc.resolveForBuyer(ctx, tx, invoice, milestone, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	dispute.State = terminal
	dispute.ResolvedAt = bun.NullTime{Time: now}

	event := common.Event{
		Name:          common.EventDisputeResolved,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		MilestoneID:   dispute.MilestoneID,
		DisputeID:     dispute.ID,
		UserID:        invoice.UserID,
		BuyerEmail:    invoice.BuyerEmail,
		Outcome:       outcome,
	}
	if refund != nil {
		event.Amount = refund.GrossAmount
		event.Fee = refund.Fee
		event.NetAmount = refund.NetAmount
	}
	svc.publishEvent(ctx, event)
	if code != "" {
		svc.publishEvent(ctx, common.Event{
			Name:          common.EventTokenIssued,
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.Number,
			MilestoneID:   dispute.MilestoneID,
			UserID:        invoice.UserID,
			BuyerEmail:    invoice.BuyerEmail,
			ReleaseCode:   code,
		})
	}
	return dispute, nil
}

// resolveForSeller puts the frozen scope back into the state it was in when
// the dispute opened. If that state had a live release path (delivered
// invoice or completed milestone) a fresh token is issued.
func (svc *EscrowService) resolveForSeller(ctx context.Context, tx bun.Tx, invoice *models.Invoice, milestone *models.Milestone, code *string) error {
	if milestone != nil {
		prior := milestone.PriorState
		if prior == "" {
			prior = common.MilestoneStatePending
		}
		if _, err := tx.NewUpdate().Model(milestone).
			Set("state = ?", prior).
			Set("prior_state = NULL").
			Where("id = ?", milestone.ID).
			Exec(ctx); err != nil {
			return err
		}
		if prior == common.MilestoneStateCompleted {
			issued, err := svc.issueReleaseToken(ctx, tx, invoice.ID, milestone.ID)
			if err != nil {
				return err
			}
			*code = issued
		}
		return nil
	}

	prior := invoice.PriorState
	if prior == "" {
		prior = common.InvoiceStatePaid
	}
	if _, err := tx.NewUpdate().Model(invoice).
		Set("state = ?", prior).
		Set("prior_state = NULL").
		Where("id = ?", invoice.ID).
		Exec(ctx); err != nil {
		return err
	}
	if prior == common.InvoiceStateDelivered {
		issued, err := svc.issueReleaseToken(ctx, tx, invoice.ID, 0)
		if err != nil {
			return err
		}
		*code = issued
	}
	return nil
}

// resolveForBuyer records the refund payout fact and ends the deal. The
// refund covers exactly what is still held in escrow: the full amount for
// full-payment invoices, and the sum of the non-released milestones for
// installment invoices, so released payouts plus the refund always add up
// to the captured amount. The platform fee is charged against the refund,
// so the buyer receives the net.
func (svc *EscrowService) resolveForBuyer(ctx context.Context, tx bun.Tx, invoice *models.Invoice, milestone *models.Milestone, now time.Time) (*models.Payout, error) {
	gross := invoice.Amount
	var milestoneId int64
	if milestone != nil {
		milestoneId = milestone.ID
	}
	if invoice.PaymentType == common.PaymentTypeInstallment {
		err := tx.NewSelect().Model((*models.Milestone)(nil)).
			ColumnExpr("COALESCE(SUM(amount), 0)").
			Where("invoice_id = ? AND state != ?", invoice.ID, common.MilestoneStateReleased).
			Scan(ctx, &gross)
		if err != nil {
			return nil, err
		}
	}
	fee := svc.ServiceFee(gross)
	refund := &models.Payout{
		InvoiceID:   invoice.ID,
		MilestoneID: milestoneId,
		Type:        common.PayoutTypeRefund,
		GrossAmount: gross,
		Fee:         fee,
		NetAmount:   gross - fee,
	}
	if _, err := tx.NewInsert().Model(refund).Exec(ctx); err != nil {
		return nil, err
	}

	// no outstanding code may release anything from a refunded deal
	if _, err := tx.NewUpdate().Model((*models.ReleaseToken)(nil)).
		Set("revoked = ?", true).
		Where("invoice_id = ? AND consumed = ?", invoice.ID, false).
		Exec(ctx); err != nil {
		return nil, err
	}

	// pass through refund_pending on the way to the terminal refunded state;
	// recording the payout fact is the refund trigger, so both happen here
	if _, err := tx.NewUpdate().Model(invoice).
		Set("state = ?", common.InvoiceStateRefundPending).
		Where("id = ?", invoice.ID).
		Exec(ctx); err != nil {
		return nil, err
	}
	if _, err := tx.NewUpdate().Model(invoice).
		Set("state = ?", common.InvoiceStateRefunded).
		Set("prior_state = NULL").
		Where("id = ? AND state = ?", invoice.ID, common.InvoiceStateRefundPending).
		Exec(ctx); err != nil {
		return nil, err
	}
	invoice.State = common.InvoiceStateRefunded
	return refund, nil
}
