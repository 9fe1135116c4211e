package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib/responses"
	"github.com/zangapay/escrow.go/lib/service"
)

// ReferralController : Referral ledger controller struct
type ReferralController struct {
	svc *service.EscrowService
}

func NewReferralController(svc *service.EscrowService) *ReferralController {
	return &ReferralController{svc: svc}
}

type BalanceResponseBody struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

type Earning struct {
	ID            int64     `json:"id"`
	InvoiceID     int64     `json:"invoice_id"`
	InvoiceAmount int64     `json:"invoice_amount"`
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

type GetEarningsResponseBody struct {
	Earnings []Earning `json:"earnings"`
}

type Withdrawal struct {
	ID           int64     `json:"id"`
	Reference    string    `json:"reference"`
	Amount       int64     `json:"amount"`
	PayoutNumber string    `json:"payout_number"`
	State        string    `json:"state"`
	FailReason   string    `json:"fail_reason,omitempty"`
	SettledAt    time.Time `json:"settled_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type GetWithdrawalsResponseBody struct {
	Withdrawals []Withdrawal `json:"withdrawals"`
}

func newWithdrawalResponse(withdrawal *models.Withdrawal) Withdrawal {
	return Withdrawal{
		ID:           withdrawal.ID,
		Reference:    withdrawal.Reference,
		Amount:       withdrawal.Amount,
		PayoutNumber: withdrawal.PayoutNumber,
		State:        withdrawal.State,
		FailReason:   withdrawal.FailReason,
		SettledAt:    withdrawal.SettledAt.Time,
		CreatedAt:    withdrawal.CreatedAt,
	}
}

// GetBalance godoc
// @Summary      Retrieve referral balance
// @Description  Returns the withdrawable commission balance of the authenticated user
// @Produce      json
// @Tags         Referral
// @Success      200  {object}  BalanceResponseBody
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/referrals/balance [get]
// @Security     OAuth2Password
func (controller *ReferralController) GetBalance(c echo.Context) error {
	userID := c.Get("UserID").(int64)

	balance, err := controller.svc.ReferralBalanceFor(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &BalanceResponseBody{
		Balance:  balance,
		Currency: controller.svc.Config.Currency,
	})
}

// GetEarnings godoc
// @Summary      Retrieve commission earnings
// @Description  Returns the commission earnings of the authenticated user, newest first
// @Produce      json
// @Tags         Referral
// @Success      200  {object}  GetEarningsResponseBody
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/referrals/earnings [get]
// @Security     OAuth2Password
func (controller *ReferralController) GetEarnings(c echo.Context) error {
	userID := c.Get("UserID").(int64)

	earnings, err := controller.svc.EarningsFor(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	response := make([]Earning, len(earnings))
	for i, earning := range earnings {
		response[i] = Earning{
			ID:            earning.ID,
			InvoiceID:     earning.InvoiceID,
			InvoiceAmount: earning.InvoiceAmount,
			Amount:        earning.Amount,
			CreatedAt:     earning.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, &GetEarningsResponseBody{Earnings: response})
}

// GetWithdrawals godoc
// @Summary      Retrieve withdrawals
// @Description  Returns the commission withdrawals of the authenticated user, newest first
// @Produce      json
// @Tags         Referral
// @Success      200  {object}  GetWithdrawalsResponseBody
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/referrals/withdrawals [get]
// @Security     OAuth2Password
func (controller *ReferralController) GetWithdrawals(c echo.Context) error {
	userID := c.Get("UserID").(int64)

	withdrawals, err := controller.svc.WithdrawalsFor(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	response := make([]Withdrawal, len(withdrawals))
	for i := range withdrawals {
		response[i] = newWithdrawalResponse(&withdrawals[i])
	}
	return c.JSON(http.StatusOK, &GetWithdrawalsResponseBody{Withdrawals: response})
}

type RequestWithdrawalRequestBody struct {
	Amount int64 `json:"amount" validate:"gt=0"`
	// PayoutNumber is the Mobile Money number the commission is paid out to.
	PayoutNumber string `json:"payout_number" validate:"required"`
}

// RequestWithdrawal godoc
// @Summary      Request a withdrawal
// @Description  Debits the referral balance and creates a pending Mobile Money withdrawal
// @Accept       json
// @Produce      json
// @Tags         Referral
// @Param        withdrawal  body      RequestWithdrawalRequestBody  True  "Withdrawal"
// @Success      200         {object}  Withdrawal
// @Failure      400         {object}  responses.ErrorResponse
// @Router       /v2/referrals/withdrawals [post]
// @Security     OAuth2Password
func (controller *ReferralController) RequestWithdrawal(c echo.Context) error {
	userID := c.Get("UserID").(int64)

	var body RequestWithdrawalRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load withdrawal request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	withdrawal, err := controller.svc.RequestWithdrawal(c.Request().Context(), userID, body.Amount, body.PayoutNumber)
	if err != nil {
		return err
	}

	response := newWithdrawalResponse(withdrawal)
	return c.JSON(http.StatusOK, &response)
}
