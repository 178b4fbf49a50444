package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	appcontext "github.com/bitworks/factbook/internal/appcontext"
	"github.com/bitworks/factbook/internal/tracing"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON body of every failed request. RequestID and
// TraceID let a failed import be lined up with its log lines and spans.
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error renders any error escaping a handler as an ErrorResponse. Domain
// errors carry their own status and metadata; everything else is a 500.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		logger.WithContext(ctx).WithError(err).Error("request failed")

		if c.Response().Committed {
			return
		}

		code, message, meta := errorParts(err)
		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: appcontext.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}

func errorParts(err error) (int, string, map[string]any) {
	if httperror.IsHTTPError(err) {
		httpErr := httperror.ToHTTPError(err)
		return httperror.GetStatusCode(err), httpErr.Error(), httpErr.Meta
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		message := http.StatusText(echoErr.Code)
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		}
		return echoErr.Code, message, map[string]any{}
	}

	return http.StatusInternalServerError, "Internal Server Error", map[string]any{}
}
