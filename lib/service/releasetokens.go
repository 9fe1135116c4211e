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

// issueReleaseToken creates a fresh one-time release token for the scope and
// revokes any unconsumed predecessor, keeping at most one live token per
// (invoice, milestone) pair. The plain code is returned exactly once; only
// its hash is stored. milestoneId of 0 scopes the token to the whole invoice.
func (svc *EscrowService) issueReleaseToken(ctx context.Context, db bun.IDB, invoiceId, milestoneId int64) (string, error) {
	revoke := db.NewUpdate().Model((*models.ReleaseToken)(nil)).
		Set("revoked = ?", true).
		Where("invoice_id = ? AND consumed = ? AND revoked = ?", invoiceId, false, false)
	if milestoneId == 0 {
		revoke = revoke.Where("milestone_id IS NULL")
	} else {
		revoke = revoke.Where("milestone_id = ?", milestoneId)
	}
	if _, err := revoke.Exec(ctx); err != nil {
		return "", err
	}

	code, err := makeReleaseCode()
	if err != nil {
		return "", err
	}
	token := &models.ReleaseToken{
		InvoiceID:   invoiceId,
		MilestoneID: milestoneId,
		CodeHash:    hashCode(code),
		IssuedAt:    time.Now(),
	}
	if _, err := db.NewInsert().Model(token).Exec(ctx); err != nil {
		return "", err
	}
	return code, nil
}

// IssueReleaseToken re-sends a lost release code outside of another
// operation's transaction. The scope must currently hold a live release
// path: a delivered full-payment invoice, or a completed milestone of a
// paid installment invoice.
func (svc *EscrowService) IssueReleaseToken(ctx context.Context, invoiceId, milestoneId int64) (string, error) {
	invoice, err := svc.FindInvoice(ctx, invoiceId)
	if err != nil {
		return "", err
	}
	frozen, err := svc.hasOpenDispute(ctx, svc.DB, invoiceId, milestoneId)
	if err != nil {
		return "", err
	}
	if frozen || invoice.State == common.InvoiceStateDisputed {
		return "", responses.FrozenError
	}
	if milestoneId == 0 {
		if invoice.PaymentType != common.PaymentTypeFull || invoice.State != common.InvoiceStateDelivered {
			return "", responses.InvalidStateError
		}
	} else {
		milestone, err := svc.FindMilestone(ctx, milestoneId)
		if err != nil {
			return "", err
		}
		if milestone.InvoiceID != invoice.ID {
			return "", responses.BadArgumentsError
		}
		if invoice.State != common.InvoiceStatePaid || milestone.State != common.MilestoneStateCompleted {
			return "", responses.InvalidStateError
		}
	}
	var code string
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		code, err = svc.issueReleaseToken(ctx, tx, invoiceId, milestoneId)
		return err
	})
	if err != nil {
		return "", err
	}
	svc.publishEvent(ctx, common.Event{
		Name:          common.EventTokenIssued,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		MilestoneID:   milestoneId,
		UserID:        invoice.UserID,
		BuyerEmail:    invoice.BuyerEmail,
		ReleaseCode:   code,
	})
	return code, nil
}

func (svc *EscrowService) findReleaseToken(ctx context.Context, invoiceId int64, codeHash string, milestoneId int64) (*models.ReleaseToken, error) {
	var token models.ReleaseToken
	q := svc.DB.NewSelect().Model(&token).
		Where("invoice_id = ? AND code_hash = ?", invoiceId, codeHash)
	if milestoneId == 0 {
		q = q.Where("milestone_id IS NULL")
	} else {
		q = q.Where("milestone_id = ?", milestoneId)
	}
	err := q.Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// hasOpenDispute reports whether an open dispute freezes the given scope. An
// invoice-level dispute freezes every milestone of the invoice as well.
func (svc *EscrowService) hasOpenDispute(ctx context.Context, db bun.IDB, invoiceId, milestoneId int64) (bool, error) {
	q := db.NewSelect().Model((*models.Dispute)(nil)).
		Where("invoice_id = ? AND state = ?", invoiceId, common.DisputeStateOpen)
	if milestoneId == 0 {
		q = q.Where("milestone_id IS NULL")
	} else {
		q = q.Where("(milestone_id = ? OR milestone_id IS NULL)", milestoneId)
	}
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConsumeReleaseToken is the only path that records a payout of escrowed
// funds. It is exactly-once under concurrent retries: the consumed flag is
// flipped with a compare-and-set and everything else happens in the same
// transaction. Returns the recorded payout with the net amount after the
// platform fee.
func (svc *EscrowService) ConsumeReleaseToken(ctx context.Context, invoiceNumber, code string, milestoneId int64) (*models.Payout, error) {
	invoice, err := svc.FindInvoiceByNumber(ctx, invoiceNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, responses.InvalidCodeError
		}
		return nil, err
	}

	token, err := svc.findReleaseToken(ctx, invoice.ID, hashCode(code), milestoneId)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, responses.InvalidCodeError
		}
		return nil, err
	}
	if token.Revoked {
		return nil, responses.InvalidCodeError
	}
	if token.Consumed {
		return nil, responses.AlreadyConsumedError
	}

	frozen, err := svc.hasOpenDispute(ctx, svc.DB, invoice.ID, milestoneId)
	if err != nil {
		return nil, err
	}
	if frozen || invoice.State == common.InvoiceStateDisputed {
		return nil, responses.FrozenError
	}

	gross := invoice.Amount
	var milestone *models.Milestone
	if milestoneId != 0 {
		milestone, err = svc.FindMilestone(ctx, milestoneId)
		if err != nil {
			return nil, err
		}
		if milestone.State != common.MilestoneStateCompleted {
			if milestone.State == common.MilestoneStateDisputed {
				return nil, responses.FrozenError
			}
			return nil, responses.InvalidStateError
		}
		// a refunded or completed invoice holds nothing to release
		if invoice.State != common.InvoiceStatePaid {
			return nil, responses.InvalidStateError
		}
		gross = milestone.Amount
	} else {
		if invoice.State != common.InvoiceStatePaid && invoice.State != common.InvoiceStateDelivered {
			return nil, responses.InvalidStateError
		}
	}

	fee := svc.ServiceFee(gross)
	payout := &models.Payout{
		InvoiceID:   invoice.ID,
		MilestoneID: milestoneId,
		TokenID:     token.ID,
		Type:        common.PayoutTypeRelease,
		GrossAmount: gross,
		Fee:         fee,
		NetAmount:   gross - fee,
	}

	now := time.Now()
	invoiceCompleted := false
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(token).
			Set("consumed = ?", true).
			Set("consumed_at = ?", now).
			Where("id = ? AND consumed = ?", token.ID, false).
			Exec(ctx)
		if err != nil {
			return err
		}
		// the CAS lost: another consumption of the same code already won
		if rows, _ := res.RowsAffected(); rows == 0 {
			return responses.AlreadyConsumedError
		}

		// a dispute committed after the check above must still freeze us
		frozen, err := svc.hasOpenDispute(ctx, tx, invoice.ID, milestoneId)
		if err != nil {
			return err
		}
		if frozen {
			return responses.FrozenError
		}

		if _, err := tx.NewInsert().Model(payout).Exec(ctx); err != nil {
			return err
		}

		if milestone != nil {
			res, err := tx.NewUpdate().Model(milestone).
				Set("state = ?", common.MilestoneStateReleased).
				Set("released_at = ?", now).
				Where("id = ? AND state = ?", milestone.ID, common.MilestoneStateCompleted).
				Exec(ctx)
			if err != nil {
				return err
			}
			if rows, _ := res.RowsAffected(); rows == 0 {
				return responses.InvalidStateError
			}
			done, err := allMilestonesReleased(ctx, tx, invoice.ID)
			if err != nil {
				return err
			}
			invoiceCompleted = done
		} else {
			invoiceCompleted = true
		}

		if invoiceCompleted {
			res, err := tx.NewUpdate().Model(invoice).
				Set("state = ?", common.InvoiceStateCompleted).
				Set("completed_at = ?", now).
				Where("id = ? AND state IN (?)", invoice.ID,
					bun.In([]string{common.InvoiceStatePaid, common.InvoiceStateDelivered})).
				Exec(ctx)
			if err != nil {
				return err
			}
			// the invoice got frozen between our reads and this write
			if rows, _ := res.RowsAffected(); rows == 0 {
				return responses.FrozenError
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if milestone != nil {
		svc.publishEvent(ctx, common.Event{
			Name:          common.EventMilestoneReleased,
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.Number,
			MilestoneID:   milestone.ID,
			UserID:        invoice.UserID,
			BuyerEmail:    invoice.BuyerEmail,
			Amount:        gross,
			Fee:           fee,
			NetAmount:     gross - fee,
		})
	}
	if invoiceCompleted {
		svc.publishEvent(ctx, common.Event{
			Name:          common.EventInvoiceCompleted,
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.Number,
			UserID:        invoice.UserID,
			BuyerEmail:    invoice.BuyerEmail,
			Amount:        invoice.Amount,
			Fee:           fee,
			NetAmount:     gross - fee,
		})
	}
	return payout, nil
}
