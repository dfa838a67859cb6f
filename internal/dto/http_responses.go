package dto

import (
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/repo"
	"pickupBoard/internal/store"
	"pickupBoard/internal/toggle"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	Unauthenticated     = "UNAUTHENTICATED"
	UpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ValidationFailed    = "VALIDATION_FAILED"
	WriteConflict       = "WRITE_CONFLICT"
	FieldPending        = "FIELD_PENDING"
	EventNotFound       = "EVENT_NOT_FOUND"
	DriverNotFound      = "DRIVER_NOT_FOUND"
)

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code   string              `json:"code"`
	Desc   string              `json:"desc"`
	Fields []toggle.FieldError `json:"fields,omitempty"`
}

func errorResponse(c *ginext.Context, status int, e *Error) {
	c.JSON(status, Response{Status: "error", Error: e})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	errorResponse(c, http.StatusBadRequest, &Error{Code: code, Desc: desc})
}

func InternalServerError(c *ginext.Context) {
	errorResponse(c, http.StatusInternalServerError, &Error{Code: ServiceUnavailable, Desc: InternalError})
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func EventNotFoundError(c *ginext.Context) {
	BadResponseError(c, EventNotFound, "Event not found")
}

func UnauthenticatedError(c *ginext.Context) {
	errorResponse(c, http.StatusUnauthorized, &Error{Code: Unauthenticated, Desc: "Session expired, please sign in again"})
}

// FromError writes the envelope matching err's place in the error taxonomy.
func FromError(c *ginext.Context, err error) {
	var (
		verr *toggle.ValidationError
		serr *toggle.SaveError
	)
	switch {
	case errors.Is(err, store.ErrUnauthenticated), errors.Is(err, auth.ErrNoCredential):
		UnauthenticatedError(c)
	case errors.As(err, &verr):
		errorResponse(c, http.StatusBadRequest, &Error{
			Code:   ValidationFailed,
			Desc:   "Some rows are invalid, nothing was saved",
			Fields: verr.Fields,
		})
	case errors.As(err, &serr) && errors.Is(err, toggle.ErrWriteConflict):
		errorResponse(c, http.StatusInternalServerError, &Error{Code: WriteConflict, Desc: serr.Error()})
	case errors.Is(err, toggle.ErrPending):
		errorResponse(c, http.StatusConflict, &Error{Code: FieldPending, Desc: "A change to this field is already being saved"})
	case errors.Is(err, repo.ErrEventNotFound):
		EventNotFoundError(c)
	case errors.Is(err, repo.ErrDriverNotFound):
		BadResponseError(c, DriverNotFound, "Driver not found")
	case errors.Is(err, repo.ErrUnknownField):
		BadResponseError(c, FieldIncorrect, err.Error())
	case errors.Is(err, store.ErrUpstreamUnavailable), errors.Is(err, store.ErrBatchTooLarge):
		errorResponse(c, http.StatusBadGateway, &Error{Code: UpstreamUnavailable, Desc: "Data service is unavailable, try again"})
	default:
		InternalServerError(c)
	}
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessAcceptedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusAccepted, Response{
		Status: "ok",
		Data:   data,
	})
}
