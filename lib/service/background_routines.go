package service

import (
	"context"
	"errors"
	"time"

	"github.com/zangapay/escrow.go/common"
	"github.com/zangapay/escrow.go/lib/responses"
)

// StartCommissionRoutine credits referral commissions for invoices that
// reach the completed state. Crediting is idempotent so a crash between
// the event and the credit only delays the commission until the next
// completed invoice of the same seller.
func (svc *EscrowService) StartCommissionRoutine(ctx context.Context) error {
	completed := make(chan common.Event)
	subId, err := svc.EventPubSub.Subscribe(common.EventInvoiceCompleted, completed)
	if err != nil {
		return err
	}
	defer svc.EventPubSub.Unsubscribe(subId, common.EventInvoiceCompleted)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-completed:
			_, err := svc.CreditCommission(ctx, event.InvoiceID)
			if err != nil {
				svc.Logger.Errorf("Failed to credit commission for invoice %d: %v", event.InvoiceID, err)
			}
		}
	}
}

// StartExpirySweeper periodically flips pending invoices whose expiry has
// passed. Expiry is also checked lazily on payment capture, the sweeper
// exists so abandoned invoices do not linger as pending forever.
func (svc *EscrowService) StartExpirySweeper(ctx context.Context) error {
	interval := time.Duration(svc.Config.ExpirySweepInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := svc.ExpirePendingInvoices(ctx)
			if err != nil {
				svc.Logger.Errorf("Expiry sweep failed: %v", err)
			}
		}
	}
}

// SubscribeAllEvents is the subscription func handed to the rabbitmq
// event publisher.
func (svc *EscrowService) SubscribeAllEvents() (chan common.Event, error) {
	events := make(chan common.Event)
	_, err := svc.EventPubSub.Subscribe(TopicAll, events)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// HandlePaymentCapture applies a settled Mobile Money payment fact delivered
// over rabbitmq. Redeliveries of a fact that was already applied are treated
// as success so the broker can ack them.
func (svc *EscrowService) HandlePaymentCapture(ctx context.Context, invoiceNumber string, amount int64) error {
	_, err := svc.CapturePayment(ctx, invoiceNumber, amount)
	if errors.Is(err, responses.AlreadyPaidError) {
		svc.Logger.Debugf("Ignoring duplicate payment fact for invoice %s", invoiceNumber)
		return nil
	}
	return err
}
