package echo

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/contrastkit/contrastkit/api"
	apierrors "github.com/contrastkit/contrastkit/errors"
	"github.com/contrastkit/contrastkit/services"
)

const (
	headerStripeSignature  = "Stripe-Signature"
	headerWebflowTimestamp = "x-webflow-timestamp"
	headerWebflowSignature = "x-webflow-signature"
)

// rawBody reads the unparsed request body. Signatures are computed over the
// exact bytes, so the body must not go through the binder first.
func rawBody(c echo.Context) ([]byte, error) {
	r := c.Request()
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), r.Body, maxWebhookBytes))
	if err != nil {
		return nil, apierrors.BadRequest("Invalid request body")
	}

	return body, nil
}

func webhookResponse(res *services.WebhookResult) api.WebhookResponse {
	return api.WebhookResponse{Received: true, Type: res.Type, Outcome: res.Outcome}
}

func (a *WidgetAPI) StripeWebhookHandler(c echo.Context) error {
	body, err := rawBody(c)
	if err != nil {
		return a.fail(c, err)
	}

	res, err := a.Billing.HandleStripeWebhook(c.Request().Context(), c.Request().Header.Get(headerStripeSignature), body)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, webhookResponse(res))
}

func (a *WidgetAPI) WebflowWebhookHandler(c echo.Context) error {
	body, err := rawBody(c)
	if err != nil {
		return a.fail(c, err)
	}

	h := c.Request().Header
	res, err := a.WebflowHooks.Handle(c.Request().Context(), h.Get(headerWebflowTimestamp), h.Get(headerWebflowSignature), body)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, webhookResponse(res))
}
