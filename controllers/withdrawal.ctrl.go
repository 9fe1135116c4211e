package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/lib/responses"
	"github.com/zangapay/escrow.go/lib/service"
)

// WithdrawalAdminController : Admin withdrawal settlement controller struct.
// The Mobile Money transfer itself happens outside the ledger; operators
// report the result back through these endpoints.
type WithdrawalAdminController struct {
	svc *service.EscrowService
}

func NewWithdrawalAdminController(svc *service.EscrowService) *WithdrawalAdminController {
	return &WithdrawalAdminController{svc: svc}
}

func withdrawalIdParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, responses.BadArgumentsError
	}
	return id, nil
}

// SettleWithdrawal godoc
// @Summary      Settle a withdrawal
// @Description  Marks a pending withdrawal as paid out
// @Produce      json
// @Tags         Withdrawal
// @Param        id   path      int  true  "Withdrawal ID"
// @Success      200  {object}  Withdrawal
// @Failure      400  {object}  responses.ErrorResponse
// @Router       /v2/admin/withdrawals/{id}/settle [post]
func (controller *WithdrawalAdminController) SettleWithdrawal(c echo.Context) error {
	withdrawalId, err := withdrawalIdParam(c)
	if err != nil {
		return err
	}

	withdrawal, err := controller.svc.SettleWithdrawal(c.Request().Context(), withdrawalId)
	if err != nil {
		return err
	}

	response := newWithdrawalResponse(withdrawal)
	return c.JSON(http.StatusOK, &response)
}

type FailWithdrawalRequestBody struct {
	Reason string `json:"reason" validate:"required"`
}

// FailWithdrawal godoc
// @Summary      Fail a withdrawal
// @Description  Marks a pending withdrawal as failed and credits the amount back to the referral balance
// @Accept       json
// @Produce      json
// @Tags         Withdrawal
// @Param        id      path      int                        true  "Withdrawal ID"
// @Param        reason  body      FailWithdrawalRequestBody  True  "Failure reason"
// @Success      200     {object}  Withdrawal
// @Failure      400     {object}  responses.ErrorResponse
// @Router       /v2/admin/withdrawals/{id}/fail [post]
func (controller *WithdrawalAdminController) FailWithdrawal(c echo.Context) error {
	withdrawalId, err := withdrawalIdParam(c)
	if err != nil {
		return err
	}

	var body FailWithdrawalRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load fail withdrawal request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	withdrawal, err := controller.svc.FailWithdrawal(c.Request().Context(), withdrawalId, body.Reason)
	if err != nil {
		return err
	}

	response := newWithdrawalResponse(withdrawal)
	return c.JSON(http.StatusOK, &response)
}
