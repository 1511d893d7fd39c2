package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/meterdock/ediel-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	opTimeout      = 5 * time.Second

	// disconnectQuiesceMs gives in-flight publishes a moment to drain
	// before the socket closes (paho takes milliseconds).
	disconnectQuiesceMs = 1000

	keepAlive = 60 * time.Second
	maxQoS    = 2

	// maxPayloadSize caps a single publish at 1MB, matching common
	// broker defaults.
	maxPayloadSize = 1 << 20
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// brokerOptions translates service config into paho client options,
// including the Last Will announcing an unexpected disconnect.
func brokerOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
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
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	// The will is retained so late subscribers still learn the
	// importer went down hard.
	opts.SetWill(Topics{}.SystemStatus(),
		string(statusPayload(statusOffline, cfg.Broker.ClientID, "unexpected_disconnect")), 1, true)

	return opts
}

// statusPayload builds the JSON body published on the system status
// topic. Reason is omitted for online announcements.
func statusPayload(status, clientID, reason string) []byte {
	payload, _ := json.Marshal(struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason,omitempty"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return payload
}

// wait blocks on a paho token and folds timeout and token errors into
// the given sentinel.
func wait(token pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timed out after %v", sentinel, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
