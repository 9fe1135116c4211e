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

type MilestoneParams struct {
	Label    string     `json:"label"`
	Amount   int64      `json:"amount" validate:"gt=0"`
	Deadline *time.Time `json:"deadline"`
}

type CreateInvoiceParams struct {
	BuyerEmail  string            `json:"buyer_email" validate:"required,email"`
	Amount      int64             `json:"amount" validate:"gt=0"`
	Memo        string            `json:"memo"`
	PaymentType string            `json:"payment_type" validate:"required,oneof=full installment"`
	ExpiresAt   *time.Time        `json:"expires_at"`
	Milestones  []MilestoneParams `json:"milestones" validate:"dive"`
}

// CreateInvoice creates a pending invoice for the seller, atomically with its
// milestones for installment deals. The milestone amounts must sum to the
// invoice amount and are immutable once the invoice is paid.
func (svc *EscrowService) CreateInvoice(ctx context.Context, sellerID int64, params CreateInvoiceParams) (*models.Invoice, error) {
	if params.Amount <= 0 {
		return nil, responses.BadArgumentsError
	}
	switch params.PaymentType {
	case common.PaymentTypeFull:
		if len(params.Milestones) > 0 {
			return nil, responses.BadArgumentsError
		}
	case common.PaymentTypeInstallment:
		if len(params.Milestones) == 0 {
			return nil, responses.BadArgumentsError
		}
		var sum int64
		for _, m := range params.Milestones {
			if m.Amount <= 0 {
				return nil, responses.BadArgumentsError
			}
			sum += m.Amount
		}
		if sum != params.Amount {
			return nil, responses.AmountMismatchError
		}
	default:
		return nil, responses.BadArgumentsError
	}

	number, err := makeInvoiceNumber()
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		Number:      number,
		UserID:      sellerID,
		BuyerEmail:  params.BuyerEmail,
		Amount:      params.Amount,
		Currency:    svc.Config.Currency,
		Memo:        params.Memo,
		PaymentType: params.PaymentType,
		State:       common.InvoiceStatePending,
	}
	if params.ExpiresAt != nil {
		invoice.ExpiresAt = bun.NullTime{Time: *params.ExpiresAt}
	}

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(invoice).Exec(ctx); err != nil {
			return err
		}
		// ordinals are assigned from the request order and are gapless 1..N
		for idx, m := range params.Milestones {
			milestone := &models.Milestone{
				InvoiceID: invoice.ID,
				Ordinal:   idx + 1,
				Label:     m.Label,
				Amount:    m.Amount,
				State:     common.MilestoneStatePending,
			}
			if m.Deadline != nil {
				milestone.Deadline = bun.NullTime{Time: *m.Deadline}
			}
			if _, err := tx.NewInsert().Model(milestone).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (svc *EscrowService) FindInvoice(ctx context.Context, invoiceId int64) (*models.Invoice, error) {
	var invoice models.Invoice
	err := svc.DB.NewSelect().Model(&invoice).Where("id = ?", invoiceId).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (svc *EscrowService) FindInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := svc.DB.NewSelect().Model(&invoice).Where("number = ?", number).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (svc *EscrowService) InvoicesFor(ctx context.Context, userId int64) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := svc.DB.NewSelect().Model(&invoices).
		Where("user_id = ?", userId).
		Where("archived_at IS NULL").
		OrderExpr("id DESC").Limit(100).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// CapturePayment records the fact that the payment network captured the full
// invoice amount from the buyer, moving the invoice from pending to paid.
func (svc *EscrowService) CapturePayment(ctx context.Context, invoiceNumber string, amount int64) (*models.Invoice, error) {
	invoice, err := svc.FindInvoiceByNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if invoice.IsExpired(time.Now()) {
		// flip lazily so a late capture observes the terminal state
		if err := svc.expireInvoice(ctx, invoice); err != nil {
			return nil, err
		}
		return nil, responses.ExpiredError
	}
	if invoice.State != common.InvoiceStatePending {
		return nil, responses.AlreadyPaidError
	}
	if amount != invoice.Amount {
		return nil, responses.AmountMismatchError
	}

	now := time.Now()
	res, err := svc.DB.NewUpdate().Model(invoice).
		Set("state = ?", common.InvoiceStatePaid).
		Set("paid_at = ?", now).
		Where("id = ? AND state = ?", invoice.ID, common.InvoiceStatePending).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	// a concurrent capture got there first
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, responses.AlreadyPaidError
	}
	invoice.State = common.InvoiceStatePaid
	invoice.PaidAt = bun.NullTime{Time: now}

	svc.publishEvent(ctx, common.Event{
		Name:          common.EventInvoicePaid,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		UserID:        invoice.UserID,
		BuyerEmail:    invoice.BuyerEmail,
		Amount:        invoice.Amount,
	})
	return invoice, nil
}

// MarkDelivered is the seller's claim that a full-payment deal is fulfilled.
// It issues the release token for the buyer's channel in the same step.
func (svc *EscrowService) MarkDelivered(ctx context.Context, invoiceId int64, actorId int64) (*models.Invoice, string, error) {
	invoice, err := svc.FindInvoice(ctx, invoiceId)
	if err != nil {
		return nil, "", err
	}
	if invoice.UserID != actorId {
		return nil, "", responses.UnauthorizedError
	}
	if invoice.State != common.InvoiceStatePaid || invoice.PaymentType != common.PaymentTypeFull {
		return nil, "", responses.InvalidStateError
	}

	now := time.Now()
	var code string
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(invoice).
			Set("state = ?", common.InvoiceStateDelivered).
			Set("delivered_at = ?", now).
			Where("id = ? AND state = ?", invoice.ID, common.InvoiceStatePaid).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return responses.InvalidStateError
		}
		code, err = svc.issueReleaseToken(ctx, tx, invoice.ID, 0)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	invoice.State = common.InvoiceStateDelivered
	invoice.DeliveredAt = bun.NullTime{Time: now}

	svc.publishEvent(ctx, common.Event{
		Name:          common.EventTokenIssued,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		UserID:        invoice.UserID,
		BuyerEmail:    invoice.BuyerEmail,
		Amount:        invoice.Amount,
		ReleaseCode:   code,
	})
	return invoice, code, nil
}

// ArchiveInvoice soft-archives an invoice. Paid invoices are never deleted.
func (svc *EscrowService) ArchiveInvoice(ctx context.Context, invoiceId int64, actorId int64) error {
	invoice, err := svc.FindInvoice(ctx, invoiceId)
	if err != nil {
		return err
	}
	if invoice.UserID != actorId {
		return responses.UnauthorizedError
	}
	_, err = svc.DB.NewUpdate().Model(invoice).
		Set("archived_at = ?", time.Now()).
		Where("id = ?", invoice.ID).
		Exec(ctx)
	return err
}

func (svc *EscrowService) expireInvoice(ctx context.Context, invoice *models.Invoice) error {
	res, err := svc.DB.NewUpdate().Model(invoice).
		Set("state = ?", common.InvoiceStateExpired).
		Where("id = ? AND state = ?", invoice.ID, common.InvoiceStatePending).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		invoice.State = common.InvoiceStateExpired
		svc.publishEvent(ctx, common.Event{
			Name:          common.EventInvoiceExpired,
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.Number,
			UserID:        invoice.UserID,
			BuyerEmail:    invoice.BuyerEmail,
			Amount:        invoice.Amount,
		})
	}
	return nil
}

// ExpirePendingInvoices flips every pending invoice past its payability
// window to the terminal expired state.
func (svc *EscrowService) ExpirePendingInvoices(ctx context.Context) error {
	var overdue []models.Invoice
	err := svc.DB.NewSelect().Model(&overdue).
		Where("state = ?", common.InvoiceStatePending).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Scan(ctx)
	if err != nil {
		return err
	}
	for _, invoice := range overdue {
		invoice := invoice
		if err := svc.expireInvoice(ctx, &invoice); err != nil {
			svc.Logger.Errorf("Failed to expire invoice invoice_id:%v error: %v", invoice.ID, err)
		}
	}
	return nil
}
