package responses

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is both the JSON error payload and the error value the
// service layer returns for domain failures. Messages are stable and shown
// to users verbatim by the presentation layer.
type ErrorResponse struct {
	IsError        bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

func (e *ErrorResponse) Error() string { return e.Message }

var GeneralServerError = &ErrorResponse{
	IsError:        true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = &ErrorResponse{
	IsError:        true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var BadAuthError = &ErrorResponse{
	IsError:        true,
	Code:           1,
	Message:        "bad auth",
	HttpStatusCode: 401,
}

var AmountMismatchError = &ErrorResponse{
	IsError:        true,
	Code:           20,
	Message:        "captured amount does not match the invoice amount",
	HttpStatusCode: 400,
}

var AlreadyPaidError = &ErrorResponse{
	IsError:        true,
	Code:           21,
	Message:        "invoice has already been paid",
	HttpStatusCode: 400,
}

var ExpiredError = &ErrorResponse{
	IsError:        true,
	Code:           22,
	Message:        "invoice has expired and can no longer be paid",
	HttpStatusCode: 400,
}

var UnauthorizedError = &ErrorResponse{
	IsError:        true,
	Code:           23,
	Message:        "you are not allowed to perform this action",
	HttpStatusCode: 403,
}

var InvalidStateError = &ErrorResponse{
	IsError:        true,
	Code:           24,
	Message:        "the invoice is not in a state that allows this action",
	HttpStatusCode: 400,
}

var SequenceViolationError = &ErrorResponse{
	IsError:        true,
	Code:           25,
	Message:        "milestones must be completed and released in order",
	HttpStatusCode: 400,
}

var InvalidCodeError = &ErrorResponse{
	IsError:        true,
	Code:           26,
	Message:        "invalid release code",
	HttpStatusCode: 400,
}

var AlreadyConsumedError = &ErrorResponse{
	IsError:        true,
	Code:           27,
	Message:        "this release code has already been used",
	HttpStatusCode: 400,
}

var FrozenError = &ErrorResponse{
	IsError:        true,
	Code:           28,
	Message:        "release is frozen while a dispute is open",
	HttpStatusCode: 409,
}

var AlreadyOpenError = &ErrorResponse{
	IsError:        true,
	Code:           29,
	Message:        "a dispute is already open for this invoice or milestone",
	HttpStatusCode: 409,
}

var AlreadyResolvedError = &ErrorResponse{
	IsError:        true,
	Code:           30,
	Message:        "this dispute has already been resolved",
	HttpStatusCode: 409,
}

var InsufficientBalanceError = &ErrorResponse{
	IsError:        true,
	Code:           31,
	Message:        "not enough referral balance for this withdrawal",
	HttpStatusCode: 400,
}

var BelowMinimumError = &ErrorResponse{
	IsError:        true,
	Code:           32,
	Message:        "withdrawal amount is below the minimum threshold",
	HttpStatusCode: 400,
}

// AsErrorResponse unwraps a domain error response from an error returned by
// the service layer. The second return value is false for storage and other
// unexpected failures, which callers must not show to users.
func AsErrorResponse(err error) (*ErrorResponse, bool) {
	var resp *ErrorResponse
	if errors.As(err, &resp) {
		return resp, true
	}
	return nil, false
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("UserID", c.Get("UserID"))
			hub.CaptureException(err)
		})
	}
	if resp, ok := AsErrorResponse(err); ok {
		c.JSON(resp.HttpStatusCode, resp)
		return
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
		return
	}
	c.JSON(http.StatusInternalServerError, GeneralServerError)
}
