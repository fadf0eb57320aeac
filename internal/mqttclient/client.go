package mqttclient

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Options struct {
	BrokerURL string
	ClientID  string
}

// Client is a connected MQTT session used to publish device commands.
type Client struct {
	raw mqtt.Client
}

func New(opts Options) (*Client, error) {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("irrigation-%d", time.Now().UnixNano())
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.BrokerURL)
	o.SetClientID(clientID)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(2 * time.Second)
	c := mqtt.NewClient(o)

	token := c.Connect()
	if !token.WaitTimeout(30*time.Second) {
		return nil, fmt.Errorf("connect %s: timed out", opts.BrokerURL)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.BrokerURL, token.Error())
	}
	return &Client{raw: c}, nil
}

// Publish blocks until the broker acknowledges the message (for qos > 0) or
// ctx is done.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	token := c.raw.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Close() {
	c.raw.Disconnect(250)
}
