package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/zangapay/escrow.go/common"
	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib/responses"
)

func (svc *EscrowService) FindMilestone(ctx context.Context, milestoneId int64) (*models.Milestone, error) {
	var milestone models.Milestone
	err := svc.DB.NewSelect().Model(&milestone).Where("id = ?", milestoneId).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (svc *EscrowService) MilestonesFor(ctx context.Context, invoiceId int64) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := svc.DB.NewSelect().Model(&milestones).
		Where("invoice_id = ?", invoiceId).
		OrderExpr("ordinal ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return milestones, nil
}

// MarkMilestoneComplete is the seller's claim that one installment portion is
// fulfilled. Milestones complete strictly in ordinal order: milestone k may
// complete only once milestone k-1 has been released. On success a release
// token scoped to the milestone is issued for the buyer's channel.
func (svc *EscrowService) MarkMilestoneComplete(ctx context.Context, invoiceId, milestoneId int64, actorId int64) (*models.Milestone, string, error) {
	invoice, err := svc.FindInvoice(ctx, invoiceId)
	if err != nil {
		return nil, "", err
	}
	if invoice.UserID != actorId {
		return nil, "", responses.UnauthorizedError
	}
	if invoice.State != common.InvoiceStatePaid || invoice.PaymentType != common.PaymentTypeInstallment {
		return nil, "", responses.InvalidStateError
	}

	milestone, err := svc.FindMilestone(ctx, milestoneId)
	if err != nil {
		return nil, "", err
	}
	if milestone.InvoiceID != invoice.ID {
		return nil, "", responses.BadArgumentsError
	}
	if milestone.State != common.MilestoneStatePending {
		return nil, "", responses.InvalidStateError
	}
	if milestone.Ordinal > 1 {
		var previous models.Milestone
		err := svc.DB.NewSelect().Model(&previous).
			Where("invoice_id = ? AND ordinal = ?", invoice.ID, milestone.Ordinal-1).
			Limit(1).Scan(ctx)
		if err != nil {
			return nil, "", err
		}
		// a disputed predecessor blocks everything after it transitively
		if previous.State != common.MilestoneStateReleased {
			return nil, "", responses.SequenceViolationError
		}
	}

	now := time.Now()
	var code string
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(milestone).
			Set("state = ?", common.MilestoneStateCompleted).
			Set("completed_at = ?", now).
			Where("id = ? AND state = ?", milestone.ID, common.MilestoneStatePending).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return responses.InvalidStateError
		}
		code, err = svc.issueReleaseToken(ctx, tx, invoice.ID, milestone.ID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	milestone.State = common.MilestoneStateCompleted
	milestone.CompletedAt = bun.NullTime{Time: now}

	svc.publishEvent(ctx, common.Event{
		Name:          common.EventMilestoneCompleted,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		MilestoneID:   milestone.ID,
		UserID:        invoice.UserID,
		BuyerEmail:    invoice.BuyerEmail,
		Amount:        milestone.Amount,
	})
	svc.publishEvent(ctx, common.Event{
		Name:          common.EventTokenIssued,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		MilestoneID:   milestone.ID,
		UserID:        invoice.UserID,
		BuyerEmail:    invoice.BuyerEmail,
		Amount:        milestone.Amount,
		ReleaseCode:   code,
	})
	return milestone, code, nil
}

// allMilestonesReleased reports whether every milestone of an invoice has
// been released, which completes the parent invoice.
func allMilestonesReleased(ctx context.Context, tx bun.Tx, invoiceId int64) (bool, error) {
	count, err := tx.NewSelect().Model((*models.Milestone)(nil)).
		Where("invoice_id = ? AND state != ?", invoiceId, common.MilestoneStateReleased).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
