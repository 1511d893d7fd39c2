package ingest

import "time"

// Import families.
const (
	FamilyMIG     = "mig"
	FamilyTwoWire = "twowire"
)

// Import statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Import is the record of one processed exchange file.
type Import struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Family   string `json:"family"`

	// Variant is the MIG export code (91-96); zero for two-wire files.
	Variant int `json:"variant,omitzero"`

	Sender   string `json:"sender,omitempty"`
	Receiver string `json:"receiver,omitempty"`

	// CreatedOn is the creation timestamp declared inside the file.
	CreatedOn *time.Time `json:"created_on,omitempty"`

	Timezone     string    `json:"timezone"`
	DeviceCount  int       `json:"device_count"`
	ReadingCount int       `json:"reading_count"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	ImportedAt   time.Time `json:"imported_at"`
}

// Device is one meter channel carried by an import.
type Device struct {
	ID       int64  `json:"id"`
	ImportID string `json:"import_id"`

	AccessEAN  string `json:"access_ean"`
	Name       string `json:"name,omitempty"`
	Serial     string `json:"serial,omitempty"`
	Direction  string `json:"direction,omitempty"`
	CounterID  string `json:"counter_id,omitempty"`
	EnergyType string `json:"energy_type,omitempty"`
	Unit       string `json:"unit,omitempty"`

	ReadingCount int        `json:"reading_count"`
	FirstReading *time.Time `json:"first_reading,omitempty"`
	LastReading  *time.Time `json:"last_reading,omitempty"`
}

// Filter controls which imports to return.
type Filter struct {
	Family string // optional: filter by family (mig, twowire)
	Status string // optional: filter by status (ok, failed)
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// ListResult contains the paginated import results.
type ListResult struct {
	Imports []Import `json:"imports"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}
