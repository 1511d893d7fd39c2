package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// ImportEvent describes the outcome of one processed exchange file.
//
// Published to edielcore/import/completed or edielcore/import/failed so
// downstream consumers (dashboards, billing jobs) can react without
// polling the API.
type ImportEvent struct {
	ImportID  string    `json:"import_id"`
	Filename  string    `json:"filename"`
	Family    string    `json:"family"`
	Variant   int       `json:"variant,omitzero"`
	Devices   int       `json:"devices"`
	Readings  int       `json:"readings"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishImportEvent publishes an import outcome on the matching topic.
//
// Events with a non-empty Error go to the failed topic, everything else
// to completed. Timestamp is filled in when zero. Events are not
// retained: they describe a moment, not a state.
func (c *Client) PublishImportEvent(event ImportEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: marshal import event: %w", ErrPublishFailed, err)
	}

	topic := Topics{}.ImportCompleted()
	if event.Error != "" {
		topic = Topics{}.ImportFailed()
	}

	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}

// PublishDeviceReadings announces that new readings were stored for one
// metering point.
func (c *Client) PublishDeviceReadings(accessEAN string, count int, first, last time.Time) error {
	payload, err := json.Marshal(map[string]any{
		"access_ean": accessEAN,
		"readings":   count,
		"first":      first.Format(time.RFC3339),
		"last":       last.Format(time.RFC3339),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%w: marshal readings event: %w", ErrPublishFailed, err)
	}

	return c.Publish(Topics{}.DeviceReadings(accessEAN), payload, byte(c.cfg.QoS), false)
}
