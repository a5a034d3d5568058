package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketcore/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/orders", topicResourceName("p1", " orders "))
	assert.Equal(t, "projects/other/topics/x", topicResourceName("p1", "projects/other/topics/x"))
	assert.Empty(t, topicResourceName("p1", ""))
	assert.Empty(t, topicResourceName("", "orders"))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "orders"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p1"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errNoOrdersTopic)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.OrdersPublisher())
	assert.Nil(t, c.Publisher("orders"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
