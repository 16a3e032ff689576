package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/labstack/echo/v4"
)

var kindStatus = map[string]int{
	service.KindNotLoggedIn:        http.StatusUnauthorized,
	service.KindSessionExpired:     http.StatusUnauthorized,
	service.KindForbidden:          http.StatusForbidden,
	service.KindInvalidQuantity:    http.StatusBadRequest,
	service.KindValidation:         http.StatusBadRequest,
	service.KindProductNotFound:    http.StatusNotFound,
	service.KindCartItemNotFound:   http.StatusNotFound,
	service.KindOrderNotFound:      http.StatusNotFound,
	service.KindReviewNotFound:     http.StatusNotFound,
	service.KindInsufficientStock:  http.StatusConflict,
	service.KindInvalidTransition:  http.StatusConflict,
	service.KindConflict:           http.StatusConflict,
	service.KindCheckoutInProgress: http.StatusConflict,
	service.KindPersistence:        http.StatusInternalServerError,
	service.KindUnknown:            http.StatusInternalServerError,
}

// fail logs err under event and converts it into an HTTP error carrying the
// stable error code.
func fail(l *slog.Logger, event string, err error) error {
	kind := service.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "reason", kind, "error", err)
		msg = "internal error"
	} else {
		l.Warn(event, "status", status, "reason", kind, "error", err)
	}
	return echo.NewHTTPError(status, transport.ErrorResponse{Code: kind, Message: msg})
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, transport.ErrorResponse{Code: service.KindValidation, Message: reason})
}

// currentSession returns the session set by the auth middleware. Routes
// without the middleware get nil, which the services reject.
func currentSession(c echo.Context) *session.Session {
	s, _ := session.FromEcho(c)
	return s
}
