package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/lib/responses"
	"github.com/zangapay/escrow.go/lib/service"
)

// ReleaseController : Release code redemption controller struct.
// The consume endpoint is public: the buyer proves authorization by
// presenting the code itself, not a platform account.
type ReleaseController struct {
	svc *service.EscrowService
}

func NewReleaseController(svc *service.EscrowService) *ReleaseController {
	return &ReleaseController{svc: svc}
}

type ConsumeReleaseCodeRequestBody struct {
	InvoiceNumber string `json:"invoice_number" validate:"required"`
	Code          string `json:"code" validate:"required"`
	MilestoneID   int64  `json:"milestone_id"`
}

type PayoutResponseBody struct {
	InvoiceID   int64     `json:"invoice_id"`
	MilestoneID int64     `json:"milestone_id,omitempty"`
	Type        string    `json:"type"`
	GrossAmount int64     `json:"gross_amount"`
	Fee         int64     `json:"fee"`
	NetAmount   int64     `json:"net_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConsumeReleaseCode godoc
// @Summary      Redeem a release code
// @Description  Consumes a release code, releasing the escrowed funds of its scope to the seller
// @Accept       json
// @Produce      json
// @Tags         Release
// @Param        release  body      ConsumeReleaseCodeRequestBody  True  "Release"
// @Success      200      {object}  PayoutResponseBody
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      409      {object}  responses.ErrorResponse
// @Router       /v2/public/release [post]
func (controller *ReleaseController) ConsumeReleaseCode(c echo.Context) error {

	var body ConsumeReleaseCodeRequestBody

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load release request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	payout, err := controller.svc.ConsumeReleaseToken(c.Request().Context(), body.InvoiceNumber, body.Code, body.MilestoneID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &PayoutResponseBody{
		InvoiceID:   payout.InvoiceID,
		MilestoneID: payout.MilestoneID,
		Type:        payout.Type,
		GrossAmount: payout.GrossAmount,
		Fee:         payout.Fee,
		NetAmount:   payout.NetAmount,
		CreatedAt:   payout.CreatedAt,
	})
}

type ReissueReleaseCodeRequestBody struct {
	InvoiceID   int64 `json:"invoice_id" validate:"required"`
	MilestoneID int64 `json:"milestone_id"`
}

type ReissueReleaseCodeResponseBody struct {
	InvoiceID   int64  `json:"invoice_id"`
	MilestoneID int64  `json:"milestone_id,omitempty"`
	ReleaseCode string `json:"release_code"`
}

// ReissueReleaseCode godoc
// @Summary      Re-issue a release code
// @Description  Issues a fresh release code for a scope whose code was lost, revoking the previous one
// @Accept       json
// @Produce      json
// @Tags         Release
// @Param        reissue  body      ReissueReleaseCodeRequestBody  True  "Reissue"
// @Success      200      {object}  ReissueReleaseCodeResponseBody
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      409      {object}  responses.ErrorResponse
// @Security     OAuth2Password
// @Router       /v2/admin/release-codes [post]
func (controller *ReleaseController) ReissueReleaseCode(c echo.Context) error {

	var body ReissueReleaseCodeRequestBody

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load reissue request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	code, err := controller.svc.IssueReleaseToken(c.Request().Context(), body.InvoiceID, body.MilestoneID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &ReissueReleaseCodeResponseBody{
		InvoiceID:   body.InvoiceID,
		MilestoneID: body.MilestoneID,
		ReleaseCode: code,
	})
}
