package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carlot/internal/domain"
)

func TestPublisher_Subject(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "carlot.listings.created"},
		{prefix: "  ", want: "carlot.listings.created"},
		{prefix: "cars", want: "cars.created"},
		{prefix: "market.cars.", want: "market.cars.created"},
	}
	for _, tt := range tests {
		p := NewPublisher(nil, tt.prefix)
		assert.Equal(t, tt.want, p.Subject(domain.EventListingCreated), "prefix %q", tt.prefix)
	}
}

func TestPublisher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "nats",
		Tag:        "2.10-alpine",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	url := fmt.Sprintf("nats://%s", resource.GetHostPort("4222/tcp"))
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var pub *Publisher
	pool.MaxWait = 30 * time.Second
	require.NoError(t, pool.Retry(func() error {
		var err error
		pub, err = Connect(url, "test.listings", logger)
		return err
	}))
	t.Cleanup(pub.Close)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	ch := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("test.listings.*", ch)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Unsubscribe() })
	require.NoError(t, sub.Flush())

	event := domain.ListingEvent{
		Type:       domain.EventListingDeleted,
		ListingID:  "l-1",
		Owner:      "owner-1",
		OccurredAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(context.Background(), event))

	select {
	case msg := <-ch:
		assert.Equal(t, "test.listings.deleted", msg.Subject)
		var got domain.ListingEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, event, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}
