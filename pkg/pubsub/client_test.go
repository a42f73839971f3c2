package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/seedfund-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

func TestResourcesSkipsBlankNames(t *testing.T) {
	c := &Client{projectID: "seedfund", cfg: config.PubSubConfig{
		DomainTopic:        "domain",
		NotificationTopic:  " ",
		DomainSubscription: "projects/other/subscriptions/domain-sub",
	}}

	assert.Equal(t, []string{
		"projects/seedfund/topics/domain",
		"projects/other/subscriptions/domain-sub",
	}, c.resources())
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	err := c.Ping(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Nil(t, c.Publisher("domain"))
	assert.NoError(t, c.Close())
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{DomainTopic: "domain"}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestClientOptionsPrecedence(t *testing.T) {
	assert.Nil(t, clientOptions(config.GCPConfig{ProjectID: "p"}))
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsFile: "/etc/sa.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, CredentialsFile: "/etc/sa.json"}), 1)
}
