package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"

	"github.com/zangapay/escrow.go/common"
)

// bufPool is a classic buffer pool pattern that allows more clever reuse of heap memory.
// Instead of allocating new memory everytime we need to encode an event we
// reuse buffers from this pool. If we consume events sequentially there will
// only be one buffer in this pool at all times, but when scaling to multiple go
// routines this memory pool will scale with it.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const (
	contentTypeJSON = "application/json"

	paymentSettledRoutingKey = "payment.incoming.settled"
)

type (
	// PaymentCaptureHandler is called for every settled Mobile Money payment
	// fact delivered by the payment processor bridge.
	PaymentCaptureHandler = func(ctx context.Context, invoiceNumber string, amount int64) error
	SubscribeToEventsFunc = func() (events chan common.Event, err error)
	EncodeEventFunc       = func(ctx context.Context, w io.Writer, event common.Event) error
)

type Client interface {
	SubscribeToPaymentCaptures(context.Context, PaymentCaptureHandler) error
	StartPublishEvents(context.Context, SubscribeToEventsFunc, EncodeEventFunc) error
	// Close will close all connections to rabbitmq
	Close() error
}

// paymentCaptureMessage is the wire format of the payment processor bridge.
type paymentCaptureMessage struct {
	InvoiceNumber string `json:"invoice_number"`
	Amount        int64  `json:"amount"`
}

type DefaultClient struct {
	amqpClient AMQPClient

	logger *lecho.Logger

	paymentConsumerQueueName string
	paymentExchange          string
	eventExchange            string
}

type ClientOption = func(client *DefaultClient)

func WithEventExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.eventExchange = exchange
	}
}

func WithPaymentExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.paymentExchange = exchange
	}
}

func WithPaymentConsumerQueueName(name string) ClientOption {
	return func(client *DefaultClient) {
		client.paymentConsumerQueueName = name
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

// Dial sets up a reconnecting connection to rabbitmq that is ready to
// produce and consume.
func Dial(uri string, options ...ClientOption) (Client, error) {
	amqpClient, err := DialAMQP(uri)
	if err != nil {
		return nil, err
	}

	return NewClient(amqpClient, options...)
}

func NewClient(amqpClient AMQPClient, options ...ClientOption) (Client, error) {
	client := &DefaultClient{
		amqpClient: amqpClient,

		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),

		paymentConsumerQueueName: "momo_payment_consumer",
		paymentExchange:          "momo_payment",
		eventExchange:            "escrow_event",
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

func (client *DefaultClient) Close() error { return client.amqpClient.Close() }

func (client *DefaultClient) SubscribeToPaymentCaptures(ctx context.Context, handler PaymentCaptureHandler) error {
	deliveryChan, err := client.amqpClient.Listen(
		ctx,
		client.paymentExchange,
		paymentSettledRoutingKey,
		client.paymentConsumerQueueName,
	)
	if err != nil {
		return err
	}

	client.logger.Info("Starting RabbitMQ payment consumer loop")
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case delivery, ok := <-deliveryChan:
			if !ok {
				return fmt.Errorf("Disconnected from RabbitMQ")
			}
			var msg paymentCaptureMessage

			err := json.Unmarshal(delivery.Body, &msg)
			if err != nil {
				captureErr(client.logger, err)

				// If we can't even Unmarshall the message we are dealing with
				// badly formatted events. In that case we simply Nack the message
				// and explicitly do not requeue it.
				err = delivery.Nack(false, false)
				if err != nil {
					captureErr(client.logger, err)
				}

				continue
			}

			err = handler(ctx, msg.InvoiceNumber, msg.Amount)
			if err != nil {
				captureErr(client.logger, err)

				// If for some reason we can't handle the message we also don't requeue
				// because this can lead to an endless loop that puts pressure on the
				// database and logs.
				err := delivery.Nack(false, false)
				if err != nil {
					captureErr(client.logger, err)
				}

				continue
			}

			err = delivery.Ack(false)
			if err != nil {
				captureErr(client.logger, err)
			}
		}
	}
}

func (client *DefaultClient) StartPublishEvents(ctx context.Context, eventsSubscribeFunc SubscribeToEventsFunc, payloadFunc EncodeEventFunc) error {
	err := client.amqpClient.ExchangeDeclare(
		client.eventExchange,
		// topic is a type of exchange that allows routing messages to different queue's bases on a routing key
		"topic",
		// Durable and Non-Auto-Deleted exchanges will survive server restarts and remain
		// declared when there are no remaining bindings.
		true,
		false,
		// Non-Internal exchange's accept direct publishing
		false,
		// Nowait: We set this to false as we want to wait for a server response
		// to check whether the exchange was created succesfully
		false,
		nil,
	)
	if err != nil {
		return err
	}

	client.logger.Info("Starting rabbitmq event publisher")

	events, err := eventsSubscribeFunc()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case event := <-events:
			err = client.publishToEventExchange(ctx, event, payloadFunc)

			if err != nil {
				captureErr(client.logger, err)
			}
		}
	}
}

func (client *DefaultClient) publishToEventExchange(ctx context.Context, event common.Event, payloadFunc EncodeEventFunc) error {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	err := payloadFunc(ctx, payload, event)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("escrow.%s", event.Name)

	err = client.amqpClient.PublishWithContext(ctx,
		client.eventExchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}

	client.logger.Debugf("Successfully published event %s for invoice %s", event.Name, event.InvoiceNumber)

	return nil
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
