package ingest

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the import tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE imports (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			family TEXT NOT NULL,
			variant INTEGER,
			sender TEXT,
			receiver TEXT,
			created_on TEXT,
			timezone TEXT NOT NULL,
			device_count INTEGER NOT NULL DEFAULT 0,
			reading_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'ok',
			error TEXT,
			imported_at TEXT NOT NULL
		);
		CREATE UNIQUE INDEX idx_imports_filename ON imports(filename);
		CREATE TABLE import_devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			import_id TEXT NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
			access_ean TEXT NOT NULL,
			name TEXT,
			serial TEXT,
			direction TEXT,
			counter_id TEXT,
			energy_type TEXT,
			unit TEXT,
			reading_count INTEGER NOT NULL DEFAULT 0,
			first_reading TEXT,
			last_reading TEXT
		);
		CREATE INDEX idx_import_devices_import ON import_devices(import_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func testImport(id string) *Import {
	created := time.Date(2024, 3, 1, 6, 15, 0, 0, time.UTC)
	return &Import{
		ID:           id,
		Filename:     "5414492000000.5414489000000.1.EXPORT91.MIG6.csv",
		Family:       FamilyMIG,
		Variant:      91,
		Sender:       "5414492000000",
		Receiver:     "5414489000000",
		CreatedOn:    &created,
		Timezone:     "+0100",
		DeviceCount:  2,
		ReadingCount: 192,
		Status:       StatusOK,
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	first := time.Date(2024, 3, 1, 0, 15, 0, 0, time.UTC)
	last := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	devices := []Device{
		{
			AccessEAN:    "541449200000000001",
			Serial:       "SER01",
			Direction:    "Offtake",
			EnergyType:   "Active",
			Unit:         "kWh",
			ReadingCount: 96,
			FirstReading: &first,
			LastReading:  &last,
		},
		{AccessEAN: "541449200000000002", ReadingCount: 96},
	}

	imp := testImport("imp-create01")
	if err := repo.Create(ctx, imp, devices); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if imp.ImportedAt.IsZero() {
		t.Error("Create() should fill ImportedAt")
	}

	got, err := repo.GetByID(ctx, "imp-create01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Filename != imp.Filename {
		t.Errorf("Filename = %q, want %q", got.Filename, imp.Filename)
	}
	if got.Variant != 91 {
		t.Errorf("Variant = %d, want 91", got.Variant)
	}
	if got.CreatedOn == nil || !got.CreatedOn.Equal(*imp.CreatedOn) {
		t.Errorf("CreatedOn = %v, want %v", got.CreatedOn, imp.CreatedOn)
	}
	if got.ReadingCount != 192 {
		t.Errorf("ReadingCount = %d, want 192", got.ReadingCount)
	}

	list, err := repo.ListDevices(ctx, "imp-create01")
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListDevices() returned %d devices, want 2", len(list))
	}
	if list[0].AccessEAN != "541449200000000001" {
		t.Errorf("AccessEAN = %q, want %q", list[0].AccessEAN, "541449200000000001")
	}
	if list[0].FirstReading == nil || !list[0].FirstReading.Equal(first) {
		t.Errorf("FirstReading = %v, want %v", list[0].FirstReading, first)
	}
	if list[1].FirstReading != nil {
		t.Errorf("FirstReading = %v, want nil", list[1].FirstReading)
	}
}

func TestRepositoryGetNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "imp-missing")
	if !errors.Is(err, ErrImportNotFound) {
		t.Errorf("GetByID() error = %v, want ErrImportNotFound", err)
	}
}

func TestRepositoryListDevicesNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.ListDevices(context.Background(), "imp-missing")
	if !errors.Is(err, ErrImportNotFound) {
		t.Errorf("ListDevices() error = %v, want ErrImportNotFound", err)
	}
}

func TestRepositoryCreateDuplicateFilename(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testImport("imp-first"), nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, testImport("imp-second"), nil)
	if !errors.Is(err, ErrAlreadyImported) {
		t.Fatalf("Create() with recorded filename error = %v, want ErrAlreadyImported", err)
	}

	// The first record is untouched.
	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || result.Imports[0].ID != "imp-first" {
		t.Errorf("imports = %+v, want only imp-first", result.Imports)
	}
}

func TestRepositoryListFilters(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	ok := testImport("imp-ok")
	if err := repo.Create(ctx, ok, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	failed := testImport("imp-failed")
	failed.Filename = "mangled.csv"
	failed.Family = FamilyTwoWire
	failed.Variant = 0
	failed.Status = StatusFailed
	failed.Error = "missing body markers"
	if err := repo.Create(ctx, failed, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 2},
		{"by family", Filter{Family: FamilyMIG}, 1},
		{"by status", Filter{Status: StatusFailed}, 1},
		{"family and status", Filter{Family: FamilyMIG, Status: StatusFailed}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.want {
				t.Errorf("Total = %d, want %d", result.Total, tt.want)
			}
			if len(result.Imports) != tt.want {
				t.Errorf("len(Imports) = %d, want %d", len(result.Imports), tt.want)
			}
		})
	}
}

func TestRepositoryListPagination(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		imp := testImport("imp-page" + string(rune('a'+i)))
		imp.Filename = imp.ID + ".csv"
		imp.ImportedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, imp, nil); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
	if len(result.Imports) != 2 {
		t.Fatalf("len(Imports) = %d, want 2", len(result.Imports))
	}
	// Most recent first, offset 1 skips the newest.
	if result.Imports[0].ID != "imp-paged" {
		t.Errorf("Imports[0].ID = %q, want %q", result.Imports[0].ID, "imp-paged")
	}
}

func TestRepositorySeenFilename(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	seen, err := repo.SeenFilename(ctx, "5414492000000.5414489000000.1.EXPORT91.MIG6.csv")
	if err != nil {
		t.Fatalf("SeenFilename() error = %v", err)
	}
	if seen {
		t.Error("SeenFilename() = true before import")
	}

	if err := repo.Create(ctx, testImport("imp-seen"), nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	seen, err = repo.SeenFilename(ctx, "5414492000000.5414489000000.1.EXPORT91.MIG6.csv")
	if err != nil {
		t.Fatalf("SeenFilename() error = %v", err)
	}
	if !seen {
		t.Error("SeenFilename() = false after import")
	}
}
