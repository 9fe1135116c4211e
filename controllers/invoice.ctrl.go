package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib/responses"
	"github.com/zangapay/escrow.go/lib/service"
)

// InvoiceController : Invoice controller struct
type InvoiceController struct {
	svc *service.EscrowService
}

func NewInvoiceController(svc *service.EscrowService) *InvoiceController {
	return &InvoiceController{svc: svc}
}

type Invoice struct {
	ID          int64       `json:"id"`
	Number      string      `json:"number"`
	BuyerEmail  string      `json:"buyer_email"`
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	Memo        string      `json:"memo,omitempty"`
	PaymentType string      `json:"payment_type"`
	State       string      `json:"state"`
	ExpiresAt   time.Time   `json:"expires_at,omitempty"`
	PaidAt      time.Time   `json:"paid_at,omitempty"`
	DeliveredAt time.Time   `json:"delivered_at,omitempty"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Milestones  []Milestone `json:"milestones,omitempty"`
}

type Milestone struct {
	ID          int64     `json:"id"`
	Ordinal     int       `json:"ordinal"`
	Label       string    `json:"label,omitempty"`
	Amount      int64     `json:"amount"`
	State       string    `json:"state"`
	Deadline    time.Time `json:"deadline,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	ReleasedAt  time.Time `json:"released_at,omitempty"`
}

type GetInvoicesResponseBody struct {
	Invoices []Invoice `json:"invoices"`
}

func newInvoiceResponse(invoice *models.Invoice, milestones []models.Milestone) Invoice {
	response := Invoice{
		ID:          invoice.ID,
		Number:      invoice.Number,
		BuyerEmail:  invoice.BuyerEmail,
		Amount:      invoice.Amount,
		Currency:    invoice.Currency,
		Memo:        invoice.Memo,
		PaymentType: invoice.PaymentType,
		State:       invoice.State,
		ExpiresAt:   invoice.ExpiresAt.Time,
		PaidAt:      invoice.PaidAt.Time,
		DeliveredAt: invoice.DeliveredAt.Time,
		CompletedAt: invoice.CompletedAt.Time,
		CreatedAt:   invoice.CreatedAt,
	}
	for _, m := range milestones {
		response.Milestones = append(response.Milestones, newMilestoneResponse(&m))
	}
	return response
}

func newMilestoneResponse(milestone *models.Milestone) Milestone {
	return Milestone{
		ID:          milestone.ID,
		Ordinal:     milestone.Ordinal,
		Label:       milestone.Label,
		Amount:      milestone.Amount,
		State:       milestone.State,
		Deadline:    milestone.Deadline.Time,
		CompletedAt: milestone.CompletedAt.Time,
		ReleasedAt:  milestone.ReleasedAt.Time,
	}
}

// invoiceIdParam parses the :id path param.
func invoiceIdParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, responses.BadArgumentsError
	}
	return id, nil
}

// CreateInvoice godoc
// @Summary      Create an invoice
// @Description  Creates a pending escrow invoice, with its milestones for installment deals
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        invoice  body      service.CreateInvoiceParams  True  "Create Invoice"
// @Success      200      {object}  Invoice
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      500      {object}  responses.ErrorResponse
// @Router       /v2/invoices [post]
// @Security     OAuth2Password
func (controller *InvoiceController) CreateInvoice(c echo.Context) error {
	userID := c.Get("UserID").(int64)

	var body service.CreateInvoiceParams
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoice, err := controller.svc.CreateInvoice(c.Request().Context(), userID, body)
	if err != nil {
		return err
	}
	milestones, err := controller.svc.MilestonesFor(c.Request().Context(), invoice.ID)
	if err != nil {
		return err
	}

	response := newInvoiceResponse(invoice, milestones)
	return c.JSON(http.StatusOK, &response)
}

// GetInvoices godoc
// @Summary      Retrieve invoices
// @Description  Returns all invoices of the authenticated seller, newest first
// @Produce      json
// @Tags         Invoice
// @Success      200  {object}  GetInvoicesResponseBody
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/invoices [get]
// @Security     OAuth2Password
func (controller *InvoiceController) GetInvoices(c echo.Context) error {
	userID := c.Get("UserID").(int64)

	invoices, err := controller.svc.InvoicesFor(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	response := make([]Invoice, len(invoices))
	for i := range invoices {
		response[i] = newInvoiceResponse(&invoices[i], nil)
	}
	return c.JSON(http.StatusOK, &GetInvoicesResponseBody{Invoices: response})
}

// GetInvoice godoc
// @Summary      Retrieve a single invoice
// @Description  Returns one invoice of the authenticated seller with its milestones
// @Produce      json
// @Tags         Invoice
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Invoice
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v2/invoices/{id} [get]
// @Security     OAuth2Password
func (controller *InvoiceController) GetInvoice(c echo.Context) error {
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
	milestones, err := controller.svc.MilestonesFor(c.Request().Context(), invoice.ID)
	if err != nil {
		return err
	}

	response := newInvoiceResponse(invoice, milestones)
	return c.JSON(http.StatusOK, &response)
}

type MarkDeliveredResponseBody struct {
	Invoice     Invoice `json:"invoice"`
	ReleaseCode string  `json:"release_code"`
}

// MarkDelivered godoc
// @Summary      Mark an invoice delivered
// @Description  Marks a fully paid invoice as delivered and issues the release code that is forwarded to the buyer
// @Produce      json
// @Tags         Invoice
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  MarkDeliveredResponseBody
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      403  {object}  responses.ErrorResponse
// @Router       /v2/invoices/{id}/deliver [post]
// @Security     OAuth2Password
func (controller *InvoiceController) MarkDelivered(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	invoiceId, err := invoiceIdParam(c)
	if err != nil {
		return err
	}

	invoice, code, err := controller.svc.MarkDelivered(c.Request().Context(), invoiceId, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &MarkDeliveredResponseBody{
		Invoice:     newInvoiceResponse(invoice, nil),
		ReleaseCode: code,
	})
}

// ArchiveInvoice godoc
// @Summary      Archive an invoice
// @Description  Hides a terminal invoice from listings. Paid invoices are never deleted.
// @Produce      json
// @Tags         Invoice
// @Param        id  path  int  true  "Invoice ID"
// @Success      204
// @Failure      400  {object}  responses.ErrorResponse
// @Router       /v2/invoices/{id}/archive [post]
// @Security     OAuth2Password
func (controller *InvoiceController) ArchiveInvoice(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	invoiceId, err := invoiceIdParam(c)
	if err != nil {
		return err
	}

	if err := controller.svc.ArchiveInvoice(c.Request().Context(), invoiceId, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type PublicInvoiceResponseBody struct {
	Number      string      `json:"number"`
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	Memo        string      `json:"memo,omitempty"`
	PaymentType string      `json:"payment_type"`
	State       string      `json:"state"`
	ExpiresAt   time.Time   `json:"expires_at,omitempty"`
	Milestones  []Milestone `json:"milestones,omitempty"`
}

// LookupInvoice godoc
// @Summary      Look up an invoice by number
// @Description  Public, unauthenticated view of an invoice for the buyer checkout page
// @Produce      json
// @Tags         Invoice
// @Param        number  path      string  true  "Invoice number"
// @Success      200     {object}  PublicInvoiceResponseBody
// @Failure      404     {object}  responses.ErrorResponse
// @Router       /v2/public/invoices/{number} [get]
func (controller *InvoiceController) LookupInvoice(c echo.Context) error {
	invoice, err := controller.svc.FindInvoiceByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return echo.ErrNotFound
	}
	milestones, err := controller.svc.MilestonesFor(c.Request().Context(), invoice.ID)
	if err != nil {
		return err
	}

	response := PublicInvoiceResponseBody{
		Number:      invoice.Number,
		Amount:      invoice.Amount,
		Currency:    invoice.Currency,
		Memo:        invoice.Memo,
		PaymentType: invoice.PaymentType,
		State:       invoice.State,
		ExpiresAt:   invoice.ExpiresAt.Time,
	}
	for i := range milestones {
		response.Milestones = append(response.Milestones, newMilestoneResponse(&milestones[i]))
	}
	return c.JSON(http.StatusOK, &response)
}
