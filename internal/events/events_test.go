package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/contrastkit/contrastkit/internal/events"
	"github.com/contrastkit/contrastkit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) error {
	return m.Called(ctx, event).Error(0)
}

func TestNew(t *testing.T) {
	e := events.New(events.TypeAppAuthorized, "abc", map[string]interface{}{"userId": "u1"})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "abc", e.SiteID)
	assert.WithinDuration(t, time.Now(), e.OccurredAt, time.Second)
	assert.NotEqual(t, e.ID, events.New(events.TypeAppAuthorized, "abc", nil).ID)
}

func TestWebhookPublisher(t *testing.T) {
	received := make(chan events.Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, events.TypeTrialStarted, r.Header.Get("X-Event-Type"))

		var e events.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		received <- e
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	event := events.New(events.TypeTrialStarted, "abc", nil)
	require.NoError(t, events.NewWebhookPublisher(server.URL, time.Second).Publish(context.Background(), event))

	got := <-received
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "abc", got.SiteID)
}

func TestWebhookPublisher_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := events.NewWebhookPublisher(server.URL, time.Second).Publish(context.Background(), events.New("x", "", nil))
	assert.Error(t, err)
}

func TestFanout_NeverFails(t *testing.T) {
	failing := &mockPublisher{}
	failing.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	ok := &mockPublisher{}
	ok.On("Publish", mock.Anything, mock.Anything).Return(nil)

	fanout := events.NewFanout(log.NewNop(), failing, ok)
	assert.Equal(t, 2, fanout.Len())

	err := fanout.Publish(context.Background(), events.New(events.TypePaymentFailed, "abc", nil))
	assert.NoError(t, err)

	failing.AssertNumberOfCalls(t, "Publish", 1)
	ok.AssertNumberOfCalls(t, "Publish", 1)
}

func TestNop(t *testing.T) {
	assert.NoError(t, events.Nop{}.Publish(context.Background(), events.Event{}))
}

func TestAMQPPublisher(t *testing.T) {
	url := os.Getenv("TEST_AMQP_URL")
	if url == "" {
		t.Skip("TEST_AMQP_URL not set")
	}

	p, err := events.NewAMQPPublisher(events.AMQPConfig{
		URL:        url,
		Exchange:   "contrastkit.test",
		RoutingKey: "contrastkit",
	})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Publish(context.Background(), events.New(events.TypeAppInstalled, "abc", nil)))
}
