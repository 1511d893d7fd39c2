package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meterdock/ediel-core/internal/infrastructure/config"
)

func brokerConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "edielcore-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local test broker, skipping the test
// when none is running.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()

	client, err := Connect(brokerConfig())
	if err != nil {
		t.Skipf("mqtt broker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// recordingLogger captures handler error and panic log lines.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record(msg) }

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestConnectAndClose(t *testing.T) {
	client := connectOrSkip(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestCloseNeverConnected(t *testing.T) {
	var client Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client := connectOrSkip(t)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(cancelled); err == nil {
		t.Error("HealthCheck() with cancelled context returned nil")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	var client Client
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishValidation(t *testing.T) {
	// Validation runs before any broker traffic, so a zero client
	// suffices for these cases.
	var client Client

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"qos out of range", "edielcore/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "edielcore/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "edielcore/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	var client Client
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("edielcore/test", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("edielcore/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("edielcore/test", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() on zero client error = %v, want ErrNotConnected", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client := connectOrSkip(t)

	received := make(chan []byte, 1)
	topic := "edielcore/test/roundtrip"
	err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	want := []byte(`{"hello":"meter"}`)
	if err := client.Publish(topic, want, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(want) {
			t.Errorf("received %s, want %s", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered within 5s")
	}
}

func TestWildcardSubscription(t *testing.T) {
	client := connectOrSkip(t)

	topics := make(chan string, 2)
	err := client.Subscribe(Topics{}.AllDeviceReadings(), 1, func(topic string, _ []byte) error {
		topics <- topic
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for _, ean := range []string{"541449200000000001", "541449200000000002"} {
		if err := client.Publish(Topics{}.DeviceReadings(ean), []byte("{}"), 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", ean, err)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case topic := <-topics:
			seen[topic] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of 2 wildcard messages", len(seen))
		}
	}
	if !seen["edielcore/device/541449200000000001/readings"] {
		t.Error("first metering point topic not matched")
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	client := connectOrSkip(t)

	logger := &recordingLogger{}
	client.SetLogger(logger)

	topic := "edielcore/test/panics"
	err := client.Subscribe(topic, 1, func(string, []byte) error {
		panic("handler exploded")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.Publish(topic, []byte("boom"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for !logger.contains("panicked") {
		select {
		case <-deadline:
			t.Fatal("panic was not logged within 5s")
		case <-time.After(50 * time.Millisecond):
		}
	}

	// The client must stay usable after a handler panic.
	if err := client.Publish("edielcore/test/after", []byte("ok"), 1, false); err != nil {
		t.Errorf("Publish() after handler panic error = %v", err)
	}
}

func TestPublishImportEventTopicRouting(t *testing.T) {
	client := connectOrSkip(t)

	events := make(chan string, 2)
	err := client.Subscribe(Topics{}.AllImportEvents(), 1, func(topic string, _ []byte) error {
		events <- topic
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	ok := ImportEvent{ImportID: "imp-1", Filename: "a.csv", Family: "mig", Variant: 91, Readings: 96}
	failed := ImportEvent{ImportID: "imp-2", Filename: "b.csv", Family: "twowire", Error: "truncated body"}
	if err := client.PublishImportEvent(ok); err != nil {
		t.Fatalf("PublishImportEvent(ok) error = %v", err)
	}
	if err := client.PublishImportEvent(failed); err != nil {
		t.Fatalf("PublishImportEvent(failed) error = %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case topic := <-events:
			seen[topic] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of 2 import events", len(seen))
		}
	}
	if !seen[Topics{}.ImportCompleted()] || !seen[Topics{}.ImportFailed()] {
		t.Errorf("events routed to %v, want completed and failed topics", seen)
	}
}

func TestStatusPayload(t *testing.T) {
	var status struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason"`
		Timestamp string `json:"timestamp"`
	}

	if err := json.Unmarshal(statusPayload(statusOffline, "edielcore", "graceful_shutdown"), &status); err != nil {
		t.Fatalf("offline payload is not valid JSON: %v", err)
	}
	if status.Status != "offline" || status.Reason != "graceful_shutdown" {
		t.Errorf("offline payload = %+v", status)
	}
	if _, err := time.Parse(time.RFC3339, status.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", status.Timestamp, err)
	}

	online := statusPayload(statusOnline, "edielcore", "")
	if strings.Contains(string(online), "reason") {
		t.Errorf("online payload carries a reason: %s", online)
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Topics{}.ImportCompleted(), "edielcore/import/completed"},
		{Topics{}.ImportFailed(), "edielcore/import/failed"},
		{Topics{}.DeviceReadings("541449200000000001"), "edielcore/device/541449200000000001/readings"},
		{Topics{}.SystemStatus(), "edielcore/system/status"},
		{Topics{}.ControlScan(), "edielcore/control/scan"},
		{Topics{}.AllImportEvents(), "edielcore/import/+"},
		{Topics{}.AllDeviceReadings(), "edielcore/device/+/readings"},
		{Topics{}.AllTopics(), "edielcore/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}
