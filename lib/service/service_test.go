package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"
	"github.com/zangapay/escrow.go/common"
	"github.com/zangapay/escrow.go/db"
	"github.com/zangapay/escrow.go/db/migrations"
	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib"
	"github.com/zangapay/escrow.go/lib/service"
)

// newTestService spins up the service against a private in-memory sqlite
// database with the schema migrated to the latest version.
func newTestService(t *testing.T) *service.EscrowService {
	t.Helper()
	cfg := &service.Config{
		DatabaseUri:           fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		JWTSecret:             []byte("test-secret"),
		JWTAccessTokenExpiry:  3600,
		JWTRefreshTokenExpiry: 3600,
		Currency:              "XAF",
		ServiceFeeBps:         300,
		CommissionRateBps:     50,
		MinWithdrawal:         2000,
	}
	dbConn, err := db.Open(cfg)
	require.NoError(t, err)
	// a single connection keeps the shared-cache memory db alive and
	// serializes writers, which sqlite wants anyway
	dbConn.SetMaxOpenConns(1)
	dbConn.SetMaxIdleConns(1)
	t.Cleanup(func() { dbConn.Close() })

	ctx := context.Background()
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return &service.EscrowService{
		Config:      cfg,
		DB:          dbConn,
		Logger:      lib.Logger(cfg.LogFilePath),
		EventPubSub: service.NewPubsub(),
	}
}

func createTestUser(t *testing.T, svc *service.EscrowService, referralCode string) *models.User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), "", "", "seller@example.com", referralCode)
	require.NoError(t, err)
	return user
}

func createFullInvoice(t *testing.T, svc *service.EscrowService, sellerId, amount int64) *models.Invoice {
	t.Helper()
	invoice, err := svc.CreateInvoice(context.Background(), sellerId, service.CreateInvoiceParams{
		BuyerEmail:  "buyer@example.com",
		Amount:      amount,
		Memo:        "laptop",
		PaymentType: common.PaymentTypeFull,
	})
	require.NoError(t, err)
	return invoice
}

func createInstallmentInvoice(t *testing.T, svc *service.EscrowService, sellerId int64, amounts ...int64) *models.Invoice {
	t.Helper()
	var total int64
	milestones := make([]service.MilestoneParams, 0, len(amounts))
	for i, amount := range amounts {
		total += amount
		milestones = append(milestones, service.MilestoneParams{
			Label:  fmt.Sprintf("phase %d", i+1),
			Amount: amount,
		})
	}
	invoice, err := svc.CreateInvoice(context.Background(), sellerId, service.CreateInvoiceParams{
		BuyerEmail:  "buyer@example.com",
		Amount:      total,
		Memo:        "kitchen renovation",
		PaymentType: common.PaymentTypeInstallment,
		Milestones:  milestones,
	})
	require.NoError(t, err)
	return invoice
}

func payInvoice(t *testing.T, svc *service.EscrowService, invoice *models.Invoice) {
	t.Helper()
	_, err := svc.CapturePayment(context.Background(), invoice.Number, invoice.Amount)
	require.NoError(t, err)
}

// awaitEvent subscribes to a topic before fn runs and returns the first event
// published to it. Events are published on background goroutines.
func awaitEvent(t *testing.T, svc *service.EscrowService, topic string, fn func()) common.Event {
	t.Helper()
	events := make(chan common.Event, 4)
	subId, err := svc.EventPubSub.Subscribe(topic, events)
	require.NoError(t, err)
	defer svc.EventPubSub.Unsubscribe(subId, topic)

	fn()

	select {
	case event := <-events:
		return event
	case <-time.After(5 * time.Second):
		t.Fatalf("no %q event within 5s", topic)
		return common.Event{}
	}
}
