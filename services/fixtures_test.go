package services

import (
	"context"
	"encoding/hex"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/contrastkit/contrastkit/cache"
	"github.com/contrastkit/contrastkit/internal/billing"
	"github.com/contrastkit/contrastkit/internal/events"
	"github.com/contrastkit/contrastkit/internal/webflow"
	"github.com/contrastkit/contrastkit/repository"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v79/webhook"
	"golang.org/x/oauth2"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// signedHeader builds a Stripe-Signature value for body.
func signedHeader(secret string, timestamp int64, body []byte) string {
	sig := webhook.ComputeSignature(time.Unix(timestamp, 0), body, secret)

	return "t=" + strconv.FormatInt(timestamp, 10) + ",v1=" + hex.EncodeToString(sig)
}

func newRepos(t *testing.T) (*repository.Repositories, *cache.MemoryStore) {
	t.Helper()

	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	return repository.New(store, nil), store
}

// fakeWebflow is an in-memory WebflowAPI.
type fakeWebflow struct {
	mu         sync.Mutex
	user       webflow.User
	sites      []webflow.Site
	scripts    []webflow.RegisteredScript
	customCode webflow.SiteCustomCode
	registered int
	upserts    int
	err        error
	// lastToken is the access token of the last script registration.
	lastToken string
}

func (f *fakeWebflow) ClientID() string { return "client-123" }

func (f *fakeWebflow) AuthCodeURL(state string) string {
	return "https://webflow.com/oauth/authorize?state=" + state
}

func (f *fakeWebflow) Exchange(context.Context, string) (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "wf-access"}, nil
}

func (f *fakeWebflow) AuthorizedUser(context.Context, string) (*webflow.User, error) {
	u := f.user
	return &u, nil
}

func (f *fakeWebflow) ListSites(context.Context, string) ([]webflow.Site, error) {
	return f.sites, nil
}

func (f *fakeWebflow) GetSite(_ context.Context, _, siteID string) (*webflow.Site, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.sites {
		if f.sites[i].ID == siteID {
			return &f.sites[i], nil
		}
	}
	return nil, &webflow.APIError{StatusCode: 404, Body: "site not found"}
}

func (f *fakeWebflow) ListRegisteredScripts(context.Context, string, string) ([]webflow.RegisteredScript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]webflow.RegisteredScript(nil), f.scripts...), nil
}

func (f *fakeWebflow) RegisterHostedScript(_ context.Context, accessToken, _ string, req webflow.HostedScriptRequest) (*webflow.RegisteredScript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered++
	f.lastToken = accessToken
	s := webflow.RegisteredScript{
		ID:             "script-1",
		DisplayName:    req.DisplayName,
		HostedLocation: req.HostedLocation,
		Version:        req.Version,
	}
	f.scripts = append(f.scripts, s)
	return &s, nil
}

func (f *fakeWebflow) GetSiteCustomCode(context.Context, string, string) (*webflow.SiteCustomCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code := webflow.SiteCustomCode{Scripts: append([]webflow.AppliedScript(nil), f.customCode.Scripts...)}
	return &code, nil
}

func (f *fakeWebflow) UpsertSiteCustomCode(_ context.Context, _, _ string, code webflow.SiteCustomCode) (*webflow.SiteCustomCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.customCode = code
	return &code, nil
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// MockGateway is a testify mock of billing.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCustomer(ctx context.Context, req billing.CustomerRequest) (*billing.Customer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Customer), args.Error(1)
}

func (m *MockGateway) CreateSetupIntent(ctx context.Context, customerID string) (*billing.SetupIntent, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.SetupIntent), args.Error(1)
}

func (m *MockGateway) CreateSubscription(ctx context.Context, req billing.SubscriptionRequest) (*billing.Subscription, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *MockGateway) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *MockGateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*billing.Subscription, error) {
	args := m.Called(ctx, subscriptionID, atPeriodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req billing.PaymentIntentRequest) (*billing.PaymentIntent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentIntent), args.Error(1)
}
