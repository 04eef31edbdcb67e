package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the response shape shared by every endpoint. The status strings
// ("success", "Bad request", "Bad Request") and per-endpoint messages are part
// of the API contract, casing included.
type Envelope struct {
	Status     string            `json:"status"`
	Message    string            `json:"message"`
	Data       any               `json:"data,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	StatusCode int               `json:"statusCode,omitempty"`
}

// Both casings ship on the wire: the auth/user/organisation-read paths use
// "Bad request", the organisation-write paths use "Bad Request".
const (
	StatusSuccess     = "success"
	StatusBadRequest  = "Bad request"
	StatusClientError = "Bad Request"
)

func RespondSuccess(ctx *gin.Context, status int, message string, data any) {
	ctx.JSON(status, Envelope{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// RespondFailure is the non-validation failure shape: statusCode in the body,
// no errors key.
func RespondFailure(ctx *gin.Context, status int, label, message string) {
	ctx.JSON(status, Envelope{
		Status:     label,
		Message:    message,
		StatusCode: status,
	})
}

// RespondUnprocessable is the registration-style validation failure: an
// errors object and no statusCode.
func RespondUnprocessable(ctx *gin.Context, message string, errs map[string]string) {
	ctx.JSON(http.StatusUnprocessableEntity, Envelope{
		Status:  StatusBadRequest,
		Message: message,
		Errors:  errs,
	})
}

// RespondInvalid is the creation-style validation failure: errors object plus
// statusCode.
func RespondInvalid(ctx *gin.Context, label, message string, errs map[string]string) {
	ctx.JSON(http.StatusBadRequest, Envelope{
		Status:     label,
		Message:    message,
		Errors:     errs,
		StatusCode: http.StatusBadRequest,
	})
}

func RespondUnAuthorized(ctx *gin.Context, message string) {
	RespondFailure(ctx, http.StatusUnauthorized, StatusBadRequest, message)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondFailure(ctx, http.StatusInternalServerError, StatusBadRequest, message)
}
