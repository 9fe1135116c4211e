package controllers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zangapay/escrow.go/lib/responses"
	"github.com/zangapay/escrow.go/lib/service"
)

// CreateUserController : Create user controller struct
type CreateUserController struct {
	svc *service.EscrowService
}

func NewCreateUserController(svc *service.EscrowService) *CreateUserController {
	return &CreateUserController{svc: svc}
}

type CreateUserRequestBody struct {
	Login        string `json:"login"`
	Password     string `json:"password"`
	Email        string `json:"email" validate:"omitempty,email"`
	ReferralCode string `json:"referral_code"`
}
type CreateUserResponseBody struct {
	Login        string `json:"login"`
	Password     string `json:"password"`
	Email        string `json:"email,omitempty"`
	ReferralCode string `json:"referral_code"`
}

// CreateUser godoc
// @Summary      Create an account
// @Description  Create a new seller account. Login and password are generated when omitted. An optional referral code attributes the account to a referrer.
// @Accept       json
// @Produce      json
// @Tags         Account
// @Param        account  body      CreateUserRequestBody  false  "Create User"
// @Success      200      {object}  CreateUserResponseBody
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      500      {object}  responses.ErrorResponse
// @Router       /v2/users [post]
func (controller *CreateUserController) CreateUser(c echo.Context) error {

	var body CreateUserRequestBody

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create user request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	user, err := controller.svc.CreateUser(c.Request().Context(), body.Login, body.Password, body.Email, body.ReferralCode)
	if err != nil {
		c.Logger().Errorf("Failed to create user: %v", err)
		if strings.Contains(err.Error(), "duplicate") && strings.Contains(err.Error(), "login") {
			return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
		}
		return err
	}

	var ResponseBody CreateUserResponseBody
	ResponseBody.Login = user.Login
	ResponseBody.Password = user.Password
	ResponseBody.Email = user.Email
	ResponseBody.ReferralCode = user.ReferralCode

	return c.JSON(http.StatusOK, &ResponseBody)
}
