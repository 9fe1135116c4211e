package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/lib/responses"
	"github.com/zangapay/escrow.go/lib/service"
)

// PaymentController : Admin payment capture controller struct.
// Payment facts normally arrive over rabbitmq; this endpoint exists for
// deployments without a broker and for support tooling.
type PaymentController struct {
	svc *service.EscrowService
}

func NewPaymentController(svc *service.EscrowService) *PaymentController {
	return &PaymentController{svc: svc}
}

type CapturePaymentRequestBody struct {
	InvoiceNumber string `json:"invoice_number" validate:"required"`
	Amount        int64  `json:"amount" validate:"gt=0"`
}

// CapturePayment godoc
// @Summary      Capture a payment fact
// @Description  Records a settled Mobile Money payment against a pending invoice
// @Accept       json
// @Produce      json
// @Tags         Payment
// @Param        payment  body      CapturePaymentRequestBody  True  "Payment fact"
// @Success      200      {object}  Invoice
// @Failure      400      {object}  responses.ErrorResponse
// @Router       /v2/admin/payments [post]
func (controller *PaymentController) CapturePayment(c echo.Context) error {

	var body CapturePaymentRequestBody

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load capture payment request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoice, err := controller.svc.CapturePayment(c.Request().Context(), body.InvoiceNumber, body.Amount)
	if err != nil {
		return err
	}

	response := newInvoiceResponse(invoice, nil)
	return c.JSON(http.StatusOK, &response)
}
