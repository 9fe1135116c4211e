package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/zangapay/escrow.go/common"
)

// publishEvent hands an event to the in-process subscribers. Publication is
// fire-and-forget; it must never block or roll back a committed transition.
func (svc *EscrowService) publishEvent(ctx context.Context, event common.Event) {
	event.CreatedAt = time.Now()
	svc.Logger.Debugf("Publishing event %s invoice_id:%v milestone_id:%v", event.Name, event.InvoiceID, event.MilestoneID)
	go svc.EventPubSub.Publish(event.Name, event)
}

// EncodeEvent writes the wire representation used by the AMQP publisher.
func (svc *EscrowService) EncodeEvent(ctx context.Context, w io.Writer, event common.Event) error {
	return json.NewEncoder(w).Encode(event)
}
