package mqtt

import "fmt"

// Topic prefixes for the edielcore MQTT tree.
//
// The service publishes under edielcore/{category}/... and accepts control
// messages under edielcore/control/...
const (
	// TopicPrefix is the base for all edielcore topics.
	TopicPrefix = "edielcore"

	// TopicPrefixImport is the base for import lifecycle events.
	TopicPrefixImport = "edielcore/import"

	// TopicPrefixDevice is the base for per-device reading events.
	TopicPrefixDevice = "edielcore/device"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "edielcore/system"

	// TopicPrefixControl is the base for inbound control topics.
	TopicPrefixControl = "edielcore/control"
)

// Topics provides builders for edielcore MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.ImportCompleted()
//	// Returns: "edielcore/import/completed"
type Topics struct{}

// =============================================================================
// Import Topics
// =============================================================================

// ImportCompleted returns the topic for successfully processed files.
//
// Example: edielcore/import/completed
func (Topics) ImportCompleted() string {
	return fmt.Sprintf("%s/completed", TopicPrefixImport)
}

// ImportFailed returns the topic for files that could not be processed.
//
// Example: edielcore/import/failed
func (Topics) ImportFailed() string {
	return fmt.Sprintf("%s/failed", TopicPrefixImport)
}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceReadings returns the topic announcing new readings for one
// metering point.
//
// Example: edielcore/device/541449200000000001/readings
func (Topics) DeviceReadings(accessEAN string) string {
	return fmt.Sprintf("%s/%s/readings", TopicPrefixDevice, accessEAN)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the service status topic (also the LWT topic).
//
// Example: edielcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Control Topics
// =============================================================================

// ControlScan returns the topic that triggers an immediate inbox scan,
// ahead of the regular poll interval.
//
// Example: edielcore/control/scan
func (Topics) ControlScan() string {
	return fmt.Sprintf("%s/scan", TopicPrefixControl)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllImportEvents returns a pattern matching every import outcome.
//
// Pattern: edielcore/import/+
func (Topics) AllImportEvents() string {
	return fmt.Sprintf("%s/+", TopicPrefixImport)
}

// AllDeviceReadings returns a pattern matching reading events for every
// metering point.
//
// Pattern: edielcore/device/+/readings
func (Topics) AllDeviceReadings() string {
	return fmt.Sprintf("%s/+/readings", TopicPrefixDevice)
}

// AllTopics returns a pattern matching all edielcore topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: edielcore/#
func (Topics) AllTopics() string {
	return "edielcore/#"
}
