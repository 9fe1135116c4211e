package transport

import (
	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/controllers"
	"github.com/zangapay/escrow.go/lib/service"
)

func RegisterEndpoints(svc *service.EscrowService, e *echo.Echo, secured *echo.Group, securedWithStrictRateLimit *echo.Group, strictRateLimitMiddleware echo.MiddlewareFunc, adminMw echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	e.POST("/auth", controllers.NewAuthController(svc).Auth, strictRateLimitMiddleware)
	if svc.Config.AllowAccountCreation {
		e.POST("/v2/users", controllers.NewCreateUserController(svc).CreateUser, strictRateLimitMiddleware, logMw)
	}

	invoiceCtrl := controllers.NewInvoiceController(svc)
	milestoneCtrl := controllers.NewMilestoneController(svc)
	disputeCtrl := controllers.NewDisputeController(svc)
	referralCtrl := controllers.NewReferralController(svc)

	secured.POST("/v2/invoices", invoiceCtrl.CreateInvoice)
	secured.GET("/v2/invoices", invoiceCtrl.GetInvoices)
	secured.GET("/v2/invoices/:id", invoiceCtrl.GetInvoice)
	secured.POST("/v2/invoices/:id/archive", invoiceCtrl.ArchiveInvoice)
	securedWithStrictRateLimit.POST("/v2/invoices/:id/deliver", invoiceCtrl.MarkDelivered)
	secured.GET("/v2/invoices/:id/milestones", milestoneCtrl.GetMilestones)
	securedWithStrictRateLimit.POST("/v2/invoices/:id/milestones/:milestone_id/complete", milestoneCtrl.CompleteMilestone)

	secured.GET("/v2/referrals/balance", referralCtrl.GetBalance)
	secured.GET("/v2/referrals/earnings", referralCtrl.GetEarnings)
	secured.GET("/v2/referrals/withdrawals", referralCtrl.GetWithdrawals)
	securedWithStrictRateLimit.POST("/v2/referrals/withdrawals", referralCtrl.RequestWithdrawal)

	// Buyer-facing endpoints. The buyer has no platform account: the invoice
	// number, release code and dispute token are the credentials.
	e.GET("/v2/public/info", controllers.NewGetInfoController(svc).GetInfo, CreateCacheClient().Middleware())
	e.GET("/v2/public/invoices/:number", invoiceCtrl.LookupInvoice)
	releaseCtrl := controllers.NewReleaseController(svc)
	e.POST("/v2/public/release", releaseCtrl.ConsumeReleaseCode, strictRateLimitMiddleware, logMw)
	e.POST("/v2/public/invoices/:id/disputes", disputeCtrl.OpenDispute, strictRateLimitMiddleware, logMw)

	e.GET("/v2/admin/disputes/:token", disputeCtrl.GetDispute, logMw)
	e.POST("/v2/admin/disputes/:token/resolve", disputeCtrl.ResolveDispute, strictRateLimitMiddleware, logMw)

	// Operator endpoints guarded by the static admin token.
	if svc.Config.AdminToken != "" {
		withdrawalCtrl := controllers.NewWithdrawalAdminController(svc)
		e.POST("/v2/admin/payments", controllers.NewPaymentController(svc).CapturePayment, strictRateLimitMiddleware, adminMw, logMw)
		e.POST("/v2/admin/release-codes", releaseCtrl.ReissueReleaseCode, strictRateLimitMiddleware, adminMw, logMw)
		e.POST("/v2/admin/withdrawals/:id/settle", withdrawalCtrl.SettleWithdrawal, strictRateLimitMiddleware, adminMw, logMw)
		e.POST("/v2/admin/withdrawals/:id/fail", withdrawalCtrl.FailWithdrawal, strictRateLimitMiddleware, adminMw, logMw)
	}
}
