package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zangapay/escrow.go/common"
)

// StartWebhookSubscription forwards every ledger event to the configured
// webhook url. Delivery is best-effort: a failing endpoint is retried with
// backoff and then dropped, it never blocks the ledger.
func (svc *EscrowService) StartWebhookSubscription(ctx context.Context) {

	svc.Logger.Infof("Starting webhook subscription with webhook url %s", svc.Config.WebhookUrl)
	events := make(chan common.Event)
	subId, err := svc.EventPubSub.Subscribe(TopicAll, events)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	defer svc.EventPubSub.Unsubscribe(subId, TopicAll)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			svc.postToWebhook(ctx, event)
		}
	}
}

func (svc *EscrowService) postToWebhook(ctx context.Context, event common.Event) {

	payload := new(bytes.Buffer)
	err := json.NewEncoder(payload).Encode(event)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	body := payload.Bytes()

	expontentialBackoff := backoff.NewExponentialBackOff()
	expontentialBackoff.MaxInterval = 10 * time.Second
	expontentialBackoff.MaxElapsedTime = time.Minute

	err = backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.Config.WebhookUrl, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, err := io.ReadAll(resp.Body)
			if err != nil {
				svc.Logger.Error(err)
			}
			return fmt.Errorf("webhook status code was %d, body: %s", resp.StatusCode, msg)
		}
		return nil
	}, backoff.WithContext(expontentialBackoff, ctx))

	if err != nil {
		svc.Logger.Errorf("Failed to deliver webhook for event %s: %v", event.Name, err)
	}
}
