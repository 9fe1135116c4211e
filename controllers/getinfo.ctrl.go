package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/lib/service"
)

// GetInfoController : GetInfoController struct
type GetInfoController struct {
	svc *service.EscrowService
}

func NewGetInfoController(svc *service.EscrowService) *GetInfoController {
	return &GetInfoController{svc: svc}
}

type GetInfoResponseBody struct {
	Currency          string `json:"currency"`
	ServiceFeeBps     int    `json:"service_fee_bps"`
	CommissionRateBps int    `json:"commission_rate_bps"`
	MinWithdrawal     int64  `json:"min_withdrawal"`
}

// GetInfo godoc
// @Summary      Platform parameters
// @Description  Returns the currency and fee parameters of this deployment
// @Produce      json
// @Tags         Info
// @Success      200  {object}  GetInfoResponseBody
// @Router       /v2/public/info [get]
func (controller *GetInfoController) GetInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, &GetInfoResponseBody{
		Currency:          controller.svc.Config.Currency,
		ServiceFeeBps:     controller.svc.Config.ServiceFeeBps,
		CommissionRateBps: controller.svc.Config.CommissionRateBps,
		MinWithdrawal:     controller.svc.Config.MinWithdrawal,
	})
}
