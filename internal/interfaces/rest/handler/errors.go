package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
	"github.com/pot-code/course-catalog/internal/participant"
)

// RESTStandardError response error
type RESTStandardError struct {
	Type    string `json:"type,omitempty"`
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func NewRESTStandardError(code int, detail string) *RESTStandardError {
	return &RESTStandardError{
		Code:   code,
		Title:  http.StatusText(code),
		Detail: detail,
	}
}

func (re RESTStandardError) Error() string {
	return re.Detail
}

func (re RESTStandardError) SetTraceID(traceID string) RESTStandardError {
	re.TraceID = traceID
	return re
}

// RESTValidationError standard validation error
type RESTValidationError struct {
	RESTStandardError
	InvalidParams []*validate.FieldError `json:"invalid_params"`
}

func NewRESTValidationError(code int, detail string, internal []*validate.FieldError) *RESTValidationError {
	return &RESTValidationError{
		RESTStandardError: RESTStandardError{
			Code:   code,
			Title:  http.StatusText(code),
			Detail: detail,
		},
		InvalidParams: internal,
	}
}

func (rve RESTValidationError) Error() string {
	return rve.Detail
}

func (rve RESTValidationError) SetTraceID(traceID string) RESTValidationError {
	rve.RESTStandardError.TraceID = traceID
	return rve
}

// ErrorResponse status code and body for err, known domain errors map to
// 4xx, anything else is a 500
func ErrorResponse(err error, traceID string) (int, interface{}) {
	var (
		ve       *validate.ValidationError
		nf       *domain.NotFoundError
		dup      *domain.DuplicateIDError
		mismatch *domain.ReorderMismatchError
		player   *domain.PlayerIntegrationError
		httpErr  *echo.HTTPError
	)
	var code int
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code, NewRESTStandardError(httpErr.Code, fmt.Sprint(httpErr.Message)).SetTraceID(traceID)
	case errors.As(err, &ve):
		return http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", ve.Fields).SetTraceID(traceID)
	case errors.As(err, &nf):
		code = http.StatusNotFound
	case errors.As(err, &dup), errors.Is(err, participant.ErrDuplicatedParticipant):
		code = http.StatusConflict
	case errors.As(err, &mismatch):
		code = http.StatusUnprocessableEntity
	case errors.As(err, &player):
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
	}
	return code, NewRESTStandardError(code, err.Error()).SetTraceID(traceID)
}
