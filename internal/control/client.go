// Package control exposes a Viewer over MQTT: commands arrive on
// "<prefix>/control", responses go to "<prefix>/response" and every player
// notification is published on "<prefix>/status".
package control

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client is the subset of mqtt.Client the control plane uses.
type Client interface {
	IsConnected() bool
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Connect opens an auto-reconnecting connection to broker (host:port or URL).
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		slog.Info("control: mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("control: mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)

	slog.Info("control: connecting to mqtt broker", "broker", broker)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("control: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("control: mqtt connection failed: %w", err)
	}
	return client, nil
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// publish waits a bounded time for the broker to accept payload.
func publish(c Client, topic string, qos byte, payload []byte) error {
	token := c.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}
	return nil
}
