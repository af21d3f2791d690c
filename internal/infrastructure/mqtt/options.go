package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/norris81b/webCamCtrl/internal/infrastructure/config"
)

const (
	connectTimeout   = 10 * time.Second
	operationTimeout = 5 * time.Second
	keepAlive        = 60 * time.Second

	// disconnectQuiesceMS lets in-flight publishes (the offline status)
	// drain before the socket closes.
	disconnectQuiesceMS = 1000

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// buildClientOptions maps the mqtt config section onto paho options. The
// session is clean: commands queued at the broker while the service was
// down are stale by the time it returns, and subscriptions are restored
// by the client itself.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

// configureLWT registers the last will, QoS 1 and retained.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string, will *Will) {
	if will == nil || will.Topic == "" {
		will = &Will{
			Topic:   Topics{}.SystemStatus(),
			Payload: statusPayload(StatusOffline, clientID, ReasonLost),
		}
	}
	opts.SetBinaryWill(will.Topic, will.Payload, 1, true)
}

// await waits for a paho token and folds timeouts and broker errors into
// sentinel.
func await(token pahomqtt.Token, sentinel error, what string) error {
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: %s: no answer after %v", sentinel, what, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", sentinel, what, err)
	}
	return nil
}
