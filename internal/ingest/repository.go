package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Repository defines the interface for import persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Create inserts an import and its device summaries in one transaction.
	// Returns ErrAlreadyImported when a record for the filename exists.
	Create(ctx context.Context, imp *Import, devices []Device) error

	// GetByID retrieves an import by its unique identifier.
	// Returns ErrImportNotFound if the import does not exist.
	GetByID(ctx context.Context, id string) (*Import, error)

	// List returns imports matching the filter, most recent first.
	List(ctx context.Context, filter Filter) (*ListResult, error)

	// ListDevices returns the device summaries of one import.
	// Returns ErrImportNotFound if the import does not exist.
	ListDevices(ctx context.Context, importID string) ([]Device, error)

	// SeenFilename reports whether a file with this name was processed
	// before, regardless of outcome.
	SeenFilename(ctx context.Context, filename string) (bool, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an import and its device summaries in one transaction.
// The ImportedAt timestamp is generated if zero.
func (r *SQLiteRepository) Create(ctx context.Context, imp *Import, devices []Device) error {
	if imp.ImportedAt.IsZero() {
		imp.ImportedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx,
		`INSERT INTO imports (id, filename, family, variant, sender, receiver,
			created_on, timezone, device_count, reading_count, status, error, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.Filename, imp.Family,
		nullableInt(imp.Variant), nullableString(imp.Sender), nullableString(imp.Receiver),
		nullableTime(imp.CreatedOn), imp.Timezone,
		imp.DeviceCount, imp.ReadingCount,
		imp.Status, nullableString(imp.Error),
		imp.ImportedAt.Format(time.RFC3339),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", ErrAlreadyImported, imp.Filename)
		}
		return fmt.Errorf("inserting import: %w", err)
	}

	for i := range devices {
		d := &devices[i]
		d.ImportID = imp.ID
		res, err := tx.ExecContext(ctx,
			`INSERT INTO import_devices (import_id, access_ean, name, serial, direction,
				counter_id, energy_type, unit, reading_count, first_reading, last_reading)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ImportID, d.AccessEAN,
			nullableString(d.Name), nullableString(d.Serial), nullableString(d.Direction),
			nullableString(d.CounterID), nullableString(d.EnergyType), nullableString(d.Unit),
			d.ReadingCount, nullableTime(d.FirstReading), nullableTime(d.LastReading),
		)
		if err != nil {
			return fmt.Errorf("inserting import device: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			d.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	return nil
}

// GetByID retrieves an import by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Import, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, filename, family, variant, sender, receiver, created_on,
			timezone, device_count, reading_count, status, error, imported_at
		 FROM imports WHERE id = ?`, id)

	imp, err := scanImport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImportNotFound
		}
		return nil, fmt.Errorf("querying import by id: %w", err)
	}
	return imp, nil
}

// List returns imports matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Family != "" {
		conditions = append(conditions, "family = ?")
		args = append(args, filter.Family)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM imports %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting imports: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, filename, family, variant, sender, receiver, created_on,
			timezone, device_count, reading_count, status, error, imported_at
		 FROM imports %s ORDER BY imported_at DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying imports: %w", err)
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning import: %w", err)
		}
		imports = append(imports, *imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating imports: %w", err)
	}

	if imports == nil {
		imports = []Import{}
	}

	return &ListResult{
		Imports: imports,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ListDevices returns the device summaries of one import.
func (r *SQLiteRepository) ListDevices(ctx context.Context, importID string) ([]Device, error) {
	if _, err := r.GetByID(ctx, importID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, import_id, access_ean, name, serial, direction, counter_id,
			energy_type, unit, reading_count, first_reading, last_reading
		 FROM import_devices WHERE import_id = ? ORDER BY id`, importID)
	if err != nil {
		return nil, fmt.Errorf("querying import devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		var d Device
		var name, serial, direction, counterID, energyType, unit sql.NullString
		var first, last sql.NullString

		if err := rows.Scan(&d.ID, &d.ImportID, &d.AccessEAN,
			&name, &serial, &direction, &counterID, &energyType, &unit,
			&d.ReadingCount, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning import device: %w", err)
		}

		d.Name = name.String
		d.Serial = serial.String
		d.Direction = direction.String
		d.CounterID = counterID.String
		d.EnergyType = energyType.String
		d.Unit = unit.String

		if d.FirstReading, err = parseNullableTime(first); err != nil {
			return nil, fmt.Errorf("parsing first reading: %w", err)
		}
		if d.LastReading, err = parseNullableTime(last); err != nil {
			return nil, fmt.Errorf("parsing last reading: %w", err)
		}

		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating import devices: %w", err)
	}

	return devices, nil
}

// SeenFilename reports whether a file with this name was processed before.
func (r *SQLiteRepository) SeenFilename(ctx context.Context, filename string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM imports WHERE filename = ?", filename).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking filename: %w", err)
	}
	return n > 0, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanImport(row scanner) (*Import, error) {
	var imp Import
	var variant sql.NullInt64
	var sender, receiver, createdOn, errText sql.NullString
	var importedAt string

	if err := row.Scan(&imp.ID, &imp.Filename, &imp.Family,
		&variant, &sender, &receiver, &createdOn,
		&imp.Timezone, &imp.DeviceCount, &imp.ReadingCount,
		&imp.Status, &errText, &importedAt); err != nil {
		return nil, err
	}

	imp.Variant = int(variant.Int64)
	imp.Sender = sender.String
	imp.Receiver = receiver.String
	imp.Error = errText.String

	var err error
	if imp.CreatedOn, err = parseNullableTime(createdOn); err != nil {
		return nil, fmt.Errorf("parsing created_on: %w", err)
	}

	t, err := time.Parse(time.RFC3339, importedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing imported_at %q: %w", importedAt, err)
	}
	imp.ImportedAt = t

	return &imp, nil
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt returns nil for zero, or the int otherwise.
func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

// nullableTime returns nil for nil or zero times, or RFC3339 text otherwise.
func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}
