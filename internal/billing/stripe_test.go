package billing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/contrastkit/contrastkit/internal/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subscriptionJSON = `{
	"id": "sub_1",
	"object": "subscription",
	"status": "incomplete",
	"customer": "cus_1",
	"current_period_start": 1700000000,
	"current_period_end": 1702592000,
	"cancel_at_period_end": false,
	"metadata": {"siteId": "abc"},
	"latest_invoice": {
		"id": "in_1",
		"object": "invoice",
		"payment_intent": {"id": "pi_1", "object": "payment_intent", "client_secret": "pi_1_secret"}
	}
}`

func newFakeStripe(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "abc", r.PostForm.Get("metadata[siteId]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cus_1","object":"customer","email":"` + r.PostForm.Get("email") + `"}`))
	})
	mux.HandleFunc("/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "price_1", r.PostForm.Get("items[0][price]"))
		assert.Equal(t, "abc", r.PostForm.Get("metadata[siteId]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(subscriptionJSON))
	})
	mux.HandleFunc("/v1/subscriptions/sub_missing", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such subscription: 'sub_missing'"}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	_, err := billing.NewStripeGateway(billing.StripeConfig{})
	assert.ErrorIs(t, err, billing.ErrNotConfigured)
}

func TestStripeGateway_CustomerAndSubscription(t *testing.T) {
	server := newFakeStripe(t)
	gw, err := billing.NewStripeGateway(billing.StripeConfig{SecretKey: "sk_test_123", APIBaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()
	customer, err := gw.CreateCustomer(ctx, billing.CustomerRequest{Email: "a@b.c", SiteID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", customer.ID)
	assert.Equal(t, "a@b.c", customer.Email)

	sub, err := gw.CreateSubscription(ctx, billing.SubscriptionRequest{
		CustomerID: "cus_1",
		PriceID:    "price_1",
		SiteID:     "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "incomplete", sub.Status)
	assert.Equal(t, "cus_1", sub.CustomerID)
	assert.Equal(t, "abc", sub.SiteID)
	assert.Equal(t, int64(1702592000), sub.CurrentPeriodEnd)
	assert.Equal(t, "pi_1_secret", sub.ClientSecret)
}

func TestStripeGateway_ErrorStatus(t *testing.T) {
	server := newFakeStripe(t)
	gw, err := billing.NewStripeGateway(billing.StripeConfig{SecretKey: "sk_test_123", APIBaseURL: server.URL})
	require.NoError(t, err)

	_, err = gw.GetSubscription(context.Background(), "sub_missing")

	var billingErr *billing.Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, http.StatusNotFound, billingErr.StatusCode)
	assert.Contains(t, billingErr.Message, "No such subscription")
}
