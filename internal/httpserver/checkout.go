package httpserver

import (
	"net/http"
	"strconv"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/labstack/echo/v4"
)

type CheckoutHTTP struct {
	Svc *service.CheckoutService
}

// Checkout starts a checkout and answers 202 with the PROCESSING status.
// With ?wait=true it answers with the finished result instead.
func (h *CheckoutHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.checkout")
	sess := currentSession(c)

	f, err := h.Svc.Checkout(ctx, sess)
	if err != nil {
		return fail(l, "checkout_error", err)
	}

	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); !wait {
		return c.JSON(http.StatusAccepted, service.CheckoutStatus{State: service.CheckoutProcessing})
	}

	res, err := f.Wait(ctx)
	if err != nil {
		// client went away; the checkout carries on
		l.Warn("checkout_wait_aborted", "error", err)
		return c.JSON(http.StatusAccepted, service.CheckoutStatus{State: service.CheckoutProcessing})
	}
	state := service.CheckoutCompleted
	if !res.Success {
		state = service.CheckoutError
	}
	return c.JSON(http.StatusOK, service.CheckoutStatus{State: state, Result: &res})
}

func (h *CheckoutHTTP) GetStatus(c echo.Context) error {
	sess := currentSession(c)
	return c.JSON(http.StatusOK, h.Svc.Status(sess.UserID))
}

func (h *CheckoutHTTP) StreamStatus(c echo.Context) error {
	sess := currentSession(c)
	return stream(c, "checkout", h.Svc.Watch(c.Request().Context(), sess.UserID))
}
