package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/contrastkit/contrastkit/api"
	"github.com/contrastkit/contrastkit/internal/billing"
)

func subscriptionResponse(sub *billing.Subscription) api.SubscriptionResponse {
	return api.SubscriptionResponse{
		SubscriptionID:     sub.ID,
		Status:             sub.Status,
		ClientSecret:       sub.ClientSecret,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
}

func (a *WidgetAPI) CreateTrialHandler(c echo.Context) error {
	s, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	var req api.TrialRequest
	if err := bind(c, &req); err != nil {
		return a.fail(c, err)
	}
	if req.Email == "" {
		req.Email = s.Claims.User.Email
	}

	ledger, created, err := a.Billing.CreateTrial(c.Request().Context(), siteID, req.Email)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, api.TrialResponse{Success: true, Created: created, Ledger: ledger})
}

func (a *WidgetAPI) PaymentStatusHandler(c echo.Context) error {
	status, err := a.Billing.PaymentStatus(c.Request().Context(), c.QueryParam("siteId"))
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, status)
}

func (a *WidgetAPI) ValidateDomainHandler(c echo.Context) error {
	v, err := a.Billing.ValidateDomain(c.Request().Context(), c.QueryParam("domain"))
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, v)
}

func (a *WidgetAPI) SetupPaymentHandler(c echo.Context) error {
	_, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	var req api.SetupPaymentRequest
	if err := bind(c, &req); err != nil {
		return a.fail(c, err)
	}

	res, err := a.Billing.SetupPayment(c.Request().Context(), siteID, req.Email)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

func (a *WidgetAPI) CreateSubscriptionHandler(c echo.Context) error {
	_, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	var req api.CreateSubscriptionRequest
	if err := bind(c, &req); err != nil {
		return a.fail(c, err)
	}

	sub, err := a.Billing.CreateSubscription(c.Request().Context(), siteID, req.PaymentMethodID, req.Email)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, subscriptionResponse(sub))
}

func (a *WidgetAPI) CreatePaymentIntentHandler(c echo.Context) error {
	_, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	var req api.PaymentIntentRequest
	if err := bind(c, &req); err != nil {
		return a.fail(c, err)
	}

	pi, err := a.Billing.CreatePaymentIntent(c.Request().Context(), siteID, req.Amount, req.Currency)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, api.PaymentIntentResponse{ClientSecret: pi.ClientSecret, PaymentIntentID: pi.ID})
}

func (a *WidgetAPI) CancelSubscriptionHandler(c echo.Context) error {
	_, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	var req api.CancelSubscriptionRequest
	if err := bind(c, &req); err != nil {
		return a.fail(c, err)
	}
	atPeriodEnd := req.CancelAtPeriodEnd == nil || *req.CancelAtPeriodEnd

	sub, err := a.Billing.CancelSubscription(c.Request().Context(), siteID, atPeriodEnd)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, subscriptionResponse(sub))
}

func (a *WidgetAPI) SubscriptionStatusHandler(c echo.Context) error {
	_, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	sub, err := a.Billing.SubscriptionStatus(c.Request().Context(), siteID)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, subscriptionResponse(sub))
}
