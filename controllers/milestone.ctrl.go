package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/lib/responses"
	"github.com/zangapay/escrow.go/lib/service"
)

// MilestoneController : Milestone controller struct
type MilestoneController struct {
	svc *service.EscrowService
}

func NewMilestoneController(svc *service.EscrowService) *MilestoneController {
	return &MilestoneController{svc: svc}
}

type GetMilestonesResponseBody struct {
	Milestones []Milestone `json:"milestones"`
}

type CompleteMilestoneResponseBody struct {
	Milestone   Milestone `json:"milestone"`
	ReleaseCode string    `json:"release_code"`
}

// GetMilestones godoc
// @Summary      Retrieve milestones
// @Description  Returns the milestones of an invoice in ordinal order
// @Produce      json
// @Tags         Milestone
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  GetMilestonesResponseBody
// @Failure      400  {object}  responses.ErrorResponse
// @Router       /v2/invoices/{id}/milestones [get]
// @Security     OAuth2Password
func (controller *MilestoneController) GetMilestones(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	invoiceId, err := invoiceIdParam(c)
	if err != nil {
		return err
	}

	invoice, err := controller.svc.FindInvoice(c.Request().Context(), invoiceId)
	if err != nil {
		return echo.ErrNotFound
	}
	if invoice.UserID != userID {
		return c.JSON(http.StatusForbidden, responses.UnauthorizedError)
	}

	milestones, err := controller.svc.MilestonesFor(c.Request().Context(), invoiceId)
	if err != nil {
		return err
	}

	response := make([]Milestone, len(milestones))
	for i := range milestones {
		response[i] = newMilestoneResponse(&milestones[i])
	}
	return c.JSON(http.StatusOK, &GetMilestonesResponseBody{Milestones: response})
}

// CompleteMilestone godoc
// @Summary      Complete a milestone
// @Description  Marks the next pending milestone as completed and issues its release code
// @Produce      json
// @Tags         Milestone
// @Param        id            path      int  true  "Invoice ID"
// @Param        milestone_id  path      int  true  "Milestone ID"
// @Success      200           {object}  CompleteMilestoneResponseBody
// @Failure      400           {object}  responses.ErrorResponse
// @Failure      403           {object}  responses.ErrorResponse
// @Router       /v2/invoices/{id}/milestones/{milestone_id}/complete [post]
// @Security     OAuth2Password
func (controller *MilestoneController) CompleteMilestone(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	invoiceId, err := invoiceIdParam(c)
	if err != nil {
		return err
	}
	milestoneId, err := strconv.ParseInt(c.Param("milestone_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	milestone, code, err := controller.svc.MarkMilestoneComplete(c.Request().Context(), invoiceId, milestoneId, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &CompleteMilestoneResponseBody{
		Milestone:   newMilestoneResponse(milestone),
		ReleaseCode: code,
	})
}
