package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib/responses"
	"github.com/zangapay/escrow.go/lib/service"
)

// DisputeController : Dispute controller struct
type DisputeController struct {
	svc *service.EscrowService
}

func NewDisputeController(svc *service.EscrowService) *DisputeController {
	return &DisputeController{svc: svc}
}

type OpenDisputeRequestBody struct {
	MilestoneID int64  `json:"milestone_id"`
	OpenedBy    string `json:"opened_by" validate:"required,oneof=buyer seller"`
	Reason      string `json:"reason" validate:"required"`
}

type Dispute struct {
	ID          int64     `json:"id"`
	InvoiceID   int64     `json:"invoice_id"`
	MilestoneID int64     `json:"milestone_id,omitempty"`
	OpenedBy    string    `json:"opened_by"`
	Reason      string    `json:"reason"`
	State       string    `json:"state"`
	ResolvedAt  time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type OpenDisputeResponseBody struct {
	Dispute Dispute `json:"dispute"`
	// AdminToken is returned once at creation and grants access to the
	// arbitration endpoints for this dispute.
	AdminToken string `json:"admin_token"`
}

func newDisputeResponse(dispute *models.Dispute) Dispute {
	return Dispute{
		ID:          dispute.ID,
		InvoiceID:   dispute.InvoiceID,
		MilestoneID: dispute.MilestoneID,
		OpenedBy:    dispute.OpenedBy,
		Reason:      dispute.Reason,
		State:       dispute.State,
		ResolvedAt:  dispute.ResolvedAt.Time,
		CreatedAt:   dispute.CreatedAt,
	}
}

// OpenDispute godoc
// @Summary      Open a dispute
// @Description  Opens a dispute on an invoice or one of its milestones, freezing release for its scope
// @Accept       json
// @Produce      json
// @Tags         Dispute
// @Param        id       path      int                     true  "Invoice ID"
// @Param        dispute  body      OpenDisputeRequestBody  True  "Dispute"
// @Success      200      {object}  OpenDisputeResponseBody
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      409      {object}  responses.ErrorResponse
// @Router       /v2/public/invoices/{id}/disputes [post]
func (controller *DisputeController) OpenDispute(c echo.Context) error {
	invoiceId, err := invoiceIdParam(c)
	if err != nil {
		return err
	}

	var body OpenDisputeRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load open dispute request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	dispute, err := controller.svc.OpenDispute(c.Request().Context(), invoiceId, body.MilestoneID, body.OpenedBy, body.Reason)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &OpenDisputeResponseBody{
		Dispute:    newDisputeResponse(dispute),
		AdminToken: dispute.AdminToken,
	})
}

type ResolveDisputeRequestBody struct {
	Outcome string `json:"outcome" validate:"required,oneof=seller buyer"`
}

// GetDispute godoc
// @Summary      Retrieve a dispute
// @Description  Returns a dispute looked up by its arbitration token
// @Produce      json
// @Tags         Dispute
// @Param        token  path      string  true  "Arbitration token"
// @Success      200    {object}  Dispute
// @Failure      404    {object}  responses.ErrorResponse
// @Router       /v2/admin/disputes/{token} [get]
func (controller *DisputeController) GetDispute(c echo.Context) error {
	dispute, err := controller.svc.FindDisputeByAdminToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return echo.ErrNotFound
	}

	response := newDisputeResponse(dispute)
	return c.JSON(http.StatusOK, &response)
}

// ResolveDispute godoc
// @Summary      Resolve a dispute
// @Description  Resolves a dispute in favor of the seller or the buyer. Resolving the same dispute twice with the same outcome is a no-op.
// @Accept       json
// @Produce      json
// @Tags         Dispute
// @Param        token       path      string                     true  "Arbitration token"
// @Param        resolution  body      ResolveDisputeRequestBody  True  "Resolution"
// @Success      200         {object}  Dispute
// @Failure      400         {object}  responses.ErrorResponse
// @Failure      409         {object}  responses.ErrorResponse
// @Router       /v2/admin/disputes/{token}/resolve [post]
func (controller *DisputeController) ResolveDispute(c echo.Context) error {
	dispute, err := controller.svc.FindDisputeByAdminToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return echo.ErrNotFound
	}

	var body ResolveDisputeRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load resolve dispute request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	resolved, err := controller.svc.ResolveDispute(c.Request().Context(), dispute.ID, body.Outcome)
	if err != nil {
		return err
	}

	response := newDisputeResponse(resolved)
	return c.JSON(http.StatusOK, &response)
}
