package echo_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/contrastkit/contrastkit/api"
	apiecho "github.com/contrastkit/contrastkit/api/echo"
	"github.com/contrastkit/contrastkit/cache"
	"github.com/contrastkit/contrastkit/internal/events"
	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/internal/ratelimit"
	"github.com/contrastkit/contrastkit/internal/webflow"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/middleware"
	"github.com/contrastkit/contrastkit/repository"
	"github.com/contrastkit/contrastkit/services"
	"github.com/contrastkit/contrastkit/session"
	"github.com/contrastkit/contrastkit/widget"
)

const (
	clientID      = "client-123"
	clientSecret  = "client-secret"
	stripeSecret  = "whsec_test"
	sessionSecret = "session-secret"
)

// fakeWebflowServer answers the OAuth token endpoint and the Data API calls
// made during a callback for a single site "abc" with short name "foo".
func fakeWebflowServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"wf-access","token_type":"bearer","scope":"sites:read"}`))
	})
	mux.HandleFunc("/v2/token/authorized_by", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"user-1","email":"ada@example.com","firstName":"Ada"}`))
	})
	mux.HandleFunc("/v2/sites", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sites":[{"id":"abc","displayName":"Foo","shortName":"foo","customDomains":[]}]}`))
	})
	mux.HandleFunc("/v2/sites/abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc","displayName":"Foo","shortName":"foo","customDomains":[]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

type apiFixture struct {
	e       *echo.Echo
	store   *cache.MemoryStore
	repos   *repository.Repositories
	signer  *session.Signer
	billing *services.BillingService
	metrics *metrics.Metrics
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	srv := fakeWebflowServer(t)
	wf, err := webflow.NewClient(webflow.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://localhost/api/auth/callback",
		AuthorizeURL: srv.URL + "/oauth/authorize",
		TokenURL:     srv.URL + "/oauth/access_token",
		APIBaseURL:   srv.URL + "/v2",
	})
	require.NoError(t, err)

	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Window: 15 * time.Minute, Max: 100})
	t.Cleanup(func() { _ = limiter.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	logger := log.NewNop()
	repos := repository.New(store, nil)
	signer := session.NewSigner(sessionSecret)
	publisher := events.Nop{}

	f := &apiFixture{store: store, repos: repos, signer: signer, metrics: m}
	f.billing = services.NewBillingService(nil, repos, services.BillingConfig{
		WebhookSecret: stripeSecret,
	}, publisher, logger, m)

	a := apiecho.NewWidgetAPI(apiecho.Deps{
		Auth:          services.NewAuthService(wf, signer, repos, publisher, logger, m),
		Settings:      services.NewSettingsService(wf, repos, publisher, logger, m),
		Scripts:       services.NewScriptService(wf, repos, services.ScriptConfig{HostedLocation: "https://cdn.example/widget.js", Version: "1.0.0"}, logger, m),
		Billing:       f.billing,
		WebflowHooks:  services.NewWebflowWebhookService(clientSecret, repos, publisher, logger),
		Authenticator: middleware.NewAuthenticator(signer, repos.UserAuth, logger, m),
		Limiter:       limiter,
		Store:         store,
		Metrics:       m,
		Gatherer:      reg,
		Logger:        logger,
	}, apiecho.Config{PublicBaseURL: "https://api.example", ExtensionOrigin: "https://" + clientID + ".webflow-ext.com"})
	f.e = a.NewEcho()

	return f
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

var sessionTokenPattern = regexp.MustCompile(`"sessionToken":"([^"]+)"`)

// login runs the designer OAuth callback and returns the session token
// handed to the opener window.
func (f *apiFixture) login(t *testing.T) string {
	t.Helper()

	state := services.EncodeState(services.AuthState{Flow: services.FlowDesigner, SiteID: "abc", Nonce: "n"})
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=xyz&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	match := sessionTokenPattern.FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2, rec.Body.String())

	return match[1]
}

func bearer(req *http.Request, token string) *http.Request {
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}

func TestCallback_FirstInstall(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	token := f.login(t)

	mapping, err := f.repos.Domains.Lookup(ctx, "foo.webflow.io")
	require.NoError(t, err)
	assert.Equal(t, "abc", mapping.SiteID)

	settings, err := f.repos.Settings.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, settings.Customization())

	claims, err := f.signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.Site())
	assert.Equal(t, "user-1", claims.User.ID)
}

func TestCallback_PostsOnlyToExtensionOrigin(t *testing.T) {
	f := newAPIFixture(t)

	state := services.EncodeState(services.AuthState{Flow: services.FlowDesigner, SiteID: "abc", Nonce: "n"})
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=xyz&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, `"*"`)
	assert.Contains(t, body, clientID+".webflow-ext.com")
}

func TestCallback_InstallFlowRedirects(t *testing.T) {
	f := newAPIFixture(t)

	state := services.EncodeState(services.AuthState{Flow: services.FlowInstall, Nonce: "n"})
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=xyz&state="+url.QueryEscape(state), nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://foo.design.webflow.com?app="+clientID, rec.Header().Get(echo.HeaderLocation))
}

func TestCallback_Denied(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/auth/callback?error=access_denied", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authorization denied")
}

func TestAuthorize_Redirect(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/auth/authorize?flow=designer&siteId=abc", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, clientID, loc.Query().Get("client_id"))

	state := services.DecodeState(loc.Query().Get("state"))
	assert.Equal(t, services.FlowDesigner, state.Flow)
	assert.Equal(t, "abc", state.SiteID)
}

func TestVerify(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	rec := f.do(bearer(httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil), token))
	require.Equal(t, http.StatusOK, rec.Code)

	var body api.VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Authenticated)
	assert.Equal(t, "abc", body.SiteID)
	require.NotNil(t, body.User)
	assert.Equal(t, "user-1", body.User.ID)

	rec = f.do(bearer(httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil), token+"x"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"authenticated":false,"error":"Unauthorized"}`, rec.Body.String())
}

func TestSettings_RequireSession(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/accessibility/settings", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
}

func TestSettings_UpdateAndConfig(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	req := httptest.NewRequest(http.MethodPost, "/api/accessibility/settings",
		strings.NewReader(`{"customization":{"fontSize":18},"siteId":"other"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(bearer(req, token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/accessibility/config?siteId=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, map[string]interface{}{"fontSize": float64(18)}, cfg["customization"])

	_, err := f.repos.Settings.Get(context.Background(), "other")
	assert.Error(t, err)
}

func TestDomainLookup_Miss(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/accessibility/domain-lookup?domain=nope.example", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Domain not found"}`, rec.Body.String())
}

func TestDomainLookup_Hit(t *testing.T) {
	f := newAPIFixture(t)
	f.login(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/accessibility/domain-lookup?domain=FOO.webflow.io", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"siteId":"abc","domain":"foo.webflow.io"}`, rec.Body.String())
}

func TestRateLimit_SameForwardedFor(t *testing.T) {
	f := newAPIFixture(t)

	get := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(echo.HeaderXForwardedFor, xff)
		return f.do(req).Code
	}

	for i := 0; i < 100; i++ {
		require.Equal(t, http.StatusOK, get("203.0.113.7"), "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, get("203.0.113.7"))
	assert.Equal(t, http.StatusOK, get("203.0.113.8"))
}

func TestFallthrough(t *testing.T) {
	f := newAPIFixture(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/nope", nil),
		httptest.NewRequest(http.MethodDelete, "/health", nil),
	} {
		rec := f.do(req)
		assert.Equal(t, http.StatusOK, rec.Code, req.Method+" "+req.URL.Path)
		assert.Equal(t, api.FallbackBody, rec.Body.String())
		assert.Len(t, rec.Header().Values("Content-Security-Policy"), 1)
	}
}

func TestPreflight_AnyPath(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/accessibility/publish", nil)
	req.Header.Set(echo.HeaderOrigin, "https://foo.webflow.io")
	rec := f.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://foo.webflow.io", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","kv":"ok"}`, rec.Body.String())
}

func TestWidget_Variants(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	f.login(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/widget.js?siteId=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, widget.ContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, widget.CacheControl, rec.Header().Get(echo.HeaderCacheControl))
	assert.Equal(t, string(widget.Render(widget.VariantPaymentRequired, widget.Bootstrap{
		SiteID: "abc", APIBase: "https://api.example",
	})), rec.Body.String())

	_, _, err := f.billing.CreateTrial(ctx, "abc", "ada@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/widget.js", nil)
	req.Header.Set("Referer", "https://foo.webflow.io/about")
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(widget.Render(widget.VariantEnabled, widget.Bootstrap{
		SiteID: "abc", APIBase: "https://api.example",
	})), rec.Body.String())

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.WidgetServedTotal.WithLabelValues(widget.VariantEnabled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.WidgetServedTotal.WithLabelValues(widget.VariantPaymentRequired)))
}

func stripeSignature(secret string, timestamp int64, body []byte) string {
	sig := webhook.ComputeSignature(time.Unix(timestamp, 0), body, secret)

	return "t=" + strconv.FormatInt(timestamp, 10) + ",v1=" + hex.EncodeToString(sig)
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	f := newAPIFixture(t)

	body := `{"id":"evt_1","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","metadata":{"siteId":"abc"}}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", stripeSignature("wrong-secret", time.Now().Unix(), []byte(body)))
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
	assert.Zero(t, f.store.Len())
}

func TestStripeWebhook_IgnoredType(t *testing.T) {
	f := newAPIFixture(t)

	body := `{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", stripeSignature(stripeSecret, time.Now().Unix(), []byte(body)))
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true,"type":"charge.refunded","outcome":"ignored"}`, rec.Body.String())
}

func TestWebflowWebhook(t *testing.T) {
	f := newAPIFixture(t)

	body := []byte(`{"triggerType":"site_publish","payload":{"siteId":"abc"}}`)
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	send := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webflow/webhook", strings.NewReader(string(body)))
		req.Header.Set("x-webflow-timestamp", ts)
		req.Header.Set("x-webflow-signature", signature)
		return f.do(req)
	}

	rec := send("deadbeef")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.store.Len())

	rec = send(webflow.SignWebhook(clientSecret, ts, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true,"type":"site_publish","outcome":"processed"}`, rec.Body.String())

	raw, err := f.store.Get(context.Background(), repository.InstallationKey("abc"))
	require.NoError(t, err)
	var inst struct {
		SiteID string `json:"siteId"`
		Event  string `json:"event"`
	}
	require.NoError(t, json.Unmarshal(raw, &inst))
	assert.Equal(t, "abc", inst.SiteID)
	assert.Equal(t, "site_publish", inst.Event)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
