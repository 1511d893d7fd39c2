package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meterdock/ediel-core/internal/infrastructure/config"
	"github.com/meterdock/ediel-core/internal/infrastructure/logging"
	"github.com/meterdock/ediel-core/internal/infrastructure/mqtt"
	"github.com/meterdock/ediel-core/internal/timeseries"
	"github.com/meterdock/ediel-core/internal/uni"
	"github.com/meterdock/ediel-core/internal/uni/mig"
	"github.com/meterdock/ediel-core/internal/uni/twowire"
)

// ReadingSink receives parsed readings for time-series storage.
// Implemented by influxdb.Client; nil disables forwarding.
type ReadingSink interface {
	WriteReading(device timeseries.DeviceKey, ts time.Time, value float64, quality string)
	WriteRegisterReading(deviceName, unit string, ts time.Time, value float64)
	WriteImportStats(filename, family string, devices, readings int)
	Flush()
}

// EventPublisher announces import outcomes.
// Implemented by mqtt.Client; nil disables publishing.
type EventPublisher interface {
	PublishImportEvent(event mqtt.ImportEvent) error
	PublishDeviceReadings(accessEAN string, count int, first, last time.Time) error
}

// Service polls the inbox directory and processes exchange files.
type Service struct {
	cfg    config.ImportConfig
	repo   Repository
	logger *logging.Logger

	sink   ReadingSink
	events EventPublisher

	// scanNow wakes the poll loop ahead of the ticker.
	scanNow chan struct{}
}

// New creates an import service. The sink and publisher are optional;
// use SetSink and SetPublisher to attach them.
func New(cfg config.ImportConfig, repo Repository, logger *logging.Logger) *Service {
	return &Service{
		cfg:     cfg,
		repo:    repo,
		logger:  logger,
		scanNow: make(chan struct{}, 1),
	}
}

// SetSink attaches a time-series sink for parsed readings.
func (s *Service) SetSink(sink ReadingSink) { s.sink = sink }

// SetPublisher attaches an event publisher for import outcomes.
func (s *Service) SetPublisher(events EventPublisher) { s.events = events }

// TriggerScan requests an immediate inbox scan. Non-blocking; a scan
// request is coalesced if one is already pending.
func (s *Service) TriggerScan() {
	select {
	case s.scanNow <- struct{}{}:
	default:
	}
}

// Run polls the inbox directory until the context is cancelled.
// A scan runs immediately on start, then on every tick or TriggerScan.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if _, err := s.Scan(ctx); err != nil {
		s.logger.Error("Initial inbox scan failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.scanNow:
		}

		if _, err := s.Scan(ctx); err != nil {
			s.logger.Error("Inbox scan failed", "error", err)
		}
	}
}

// Scan processes every unseen .csv file in the inbox directory and
// returns how many files were handled (successes and failures both
// count - each produced an import record).
func (s *Service) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.cfg.Directory)
	if err != nil {
		return 0, fmt.Errorf("reading inbox %s: %w", s.cfg.Directory, err)
	}

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		seen, err := s.repo.SeenFilename(ctx, entry.Name())
		if err != nil {
			return processed, err
		}
		if seen {
			continue
		}

		imp := s.processFile(ctx, filepath.Join(s.cfg.Directory, entry.Name()))
		if imp != nil {
			processed++
		}
	}

	if processed > 0 && s.sink != nil {
		s.sink.Flush()
	}
	return processed, nil
}

// processFile parses one file, records the outcome and archives the
// file. All failure paths produce a "failed" import record so the file
// is not retried on the next poll.
func (s *Service) processFile(ctx context.Context, path string) *Import {
	base := filepath.Base(path)
	log := s.logger.With("component", "ingest", "file", base)

	var imp *Import
	var devices []Device
	var err error

	if match, ok := uni.MatchFilename(base); ok {
		imp, devices, err = s.processMIG(path, match)
	} else {
		imp, devices, err = s.processTwoWire(path)
	}

	if err != nil {
		log.Error("Import failed", "error", err)
		imp.Status = StatusFailed
		imp.Error = err.Error()
		devices = nil
	} else {
		log.Info("Import completed",
			"family", imp.Family,
			"devices", imp.DeviceCount,
			"readings", imp.ReadingCount,
		)
	}

	if repoErr := s.repo.Create(ctx, imp, devices); repoErr != nil {
		if errors.Is(repoErr, ErrAlreadyImported) {
			// A concurrent scan recorded the file between the seen
			// check and here; archive it and keep its record.
			log.Warn("File already recorded", "error", repoErr)
			s.archive(path, log)
			return nil
		}
		// Without a record the file would loop forever; leave it in
		// place and surface the storage problem.
		log.Error("Recording import failed", "error", repoErr)
		return nil
	}

	s.publishOutcome(imp, devices)
	s.archive(path, log)
	return imp
}

// processMIG parses a file matching the operator's export naming.
func (s *Service) processMIG(path string, match uni.FileMatch) (*Import, []Device, error) {
	imp := &Import{
		ID:       newImportID(),
		Filename: match.Filename,
		Family:   FamilyMIG,
		Variant:  match.Variant,
		Sender:   match.Sender,
		Receiver: match.Receiver,
		Status:   StatusOK,
	}

	var opts []uni.Option
	if s.cfg.DropContractInfo {
		opts = append(opts, uni.DropContractInfoLines())
	}

	p, err := mig.New(uni.FileSource(path), opts...)
	if err != nil {
		return imp, nil, err
	}
	s.fillHeader(imp, p.Parser)

	var devices []Device
	switch p.Dialect().Kind {
	case mig.KindInterval:
		devices, err = s.ingestIntervalTable(p)
	case mig.KindRegister:
		devices, err = s.ingestRegisters(p)
	case mig.KindFlat:
		devices, err = s.ingestFlatReadings(p)
	default:
		err = fmt.Errorf("unhandled dialect kind %v", p.Dialect().Kind)
	}
	if err != nil {
		return imp, nil, err
	}

	imp.DeviceCount = len(devices)
	for _, d := range devices {
		imp.ReadingCount += d.ReadingCount
	}
	return imp, devices, nil
}

// ingestIntervalTable reconstructs the wide table of a packed interval
// export (variants 91-93) and forwards every reading to the sink.
func (s *Service) ingestIntervalTable(p *mig.Parser) ([]Device, error) {
	table, err := p.Timeseries()
	if err != nil {
		return nil, err
	}

	var devices []Device
	for i, col := range table.Columns {
		if col.Subtype != timeseries.SubtypeValue {
			continue
		}

		// Quality columns follow their value column.
		var codes []string
		if i+1 < len(table.Columns) && table.Columns[i+1].Subtype == timeseries.SubtypeQuality {
			codes = table.Columns[i+1].Codes
		}

		count := 0
		var first, last time.Time
		for j, v := range col.Values {
			if math.IsNaN(v) {
				continue
			}
			if count == 0 {
				first = table.Index[j]
			}
			last = table.Index[j]
			count++
			if s.sink != nil {
				quality := ""
				if codes != nil {
					quality = codes[j]
				}
				s.sink.WriteReading(col.Device, table.Index[j], v, quality)
			}
		}

		d := Device{
			AccessEAN:    col.Device.AccessEAN,
			Name:         col.Device.Description,
			Serial:       col.Device.Serial,
			Direction:    col.Device.Direction,
			CounterID:    col.Device.CounterID,
			EnergyType:   col.Device.EnergyType,
			Unit:         col.Device.Unit,
			ReadingCount: count,
		}
		// The span covers the device's own readings, not the whole
		// table: a sparse channel reports only where it has data.
		if count > 0 {
			d.FirstReading, d.LastReading = &first, &last
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// ingestRegisters summarises a register status export (variant 94).
// Register snapshots carry no time series; only the summary is stored.
func (s *Service) ingestRegisters(p *mig.Parser) ([]Device, error) {
	registers, err := p.Registers()
	if err != nil {
		return nil, err
	}

	// One summary per metering point, counting its register rows.
	order := []string{}
	counts := map[string]int{}
	serials := map[string]string{}
	for _, reg := range registers {
		if _, ok := counts[reg.AccessEAN]; !ok {
			order = append(order, reg.AccessEAN)
		}
		counts[reg.AccessEAN]++
		if !reg.Calculated && serials[reg.AccessEAN] == "" {
			serials[reg.AccessEAN] = reg.Serial
		}
	}

	var devices []Device
	for _, ean := range order {
		devices = append(devices, Device{
			AccessEAN:    ean,
			Serial:       serials[ean],
			ReadingCount: counts[ean],
		})
	}
	return devices, nil
}

// ingestFlatReadings handles consumption exports (variants 95 and 96):
// one reading per row, forwarded at the period end timestamp.
func (s *Service) ingestFlatReadings(p *mig.Parser) ([]Device, error) {
	readings, err := p.Readings()
	if err != nil {
		return nil, err
	}

	order := []string{}
	byEAN := map[string]*Device{}
	for _, r := range readings {
		d, ok := byEAN[r.AccessEAN]
		if !ok {
			d = &Device{
				AccessEAN:  r.AccessEAN,
				Direction:  r.Direction,
				EnergyType: r.EnergyType,
				Unit:       r.Unit,
			}
			byEAN[r.AccessEAN] = d
			order = append(order, r.AccessEAN)
		}

		if r.Consumption == nil {
			continue
		}
		d.ReadingCount++
		end := r.End
		if d.FirstReading == nil || end.Before(*d.FirstReading) {
			start := end
			d.FirstReading = &start
		}
		if d.LastReading == nil || end.After(*d.LastReading) {
			last := end
			d.LastReading = &last
		}

		if s.sink != nil {
			s.sink.WriteReading(timeseries.DeviceKey{
				AccessEAN:  r.AccessEAN,
				Direction:  r.Direction,
				EnergyType: r.EnergyType,
				Unit:       r.Unit,
			}, r.End, *r.Consumption, r.QualityCode)
		}
	}

	var devices []Device
	for _, ean := range order {
		devices = append(devices, *byEAN[ean])
	}
	return devices, nil
}

// processTwoWire parses a register export from a two-wire meter head.
func (s *Service) processTwoWire(path string) (*Import, []Device, error) {
	base := filepath.Base(path)
	imp := &Import{
		ID:       newImportID(),
		Filename: base,
		Family:   FamilyTwoWire,
		Status:   StatusOK,
	}

	var opts []twowire.Option
	if s.cfg.DeduplicateDevices {
		opts = append(opts, twowire.DeduplicateDevices())
	}
	if s.cfg.DropContractInfo {
		opts = append(opts, twowire.WithHeaderOptions(uni.DropContractInfoLines()))
	}

	p, err := twowire.New(uni.FileSource(path), opts...)
	if err != nil {
		return imp, nil, err
	}
	s.fillHeader(imp, p.Parser)

	meters, err := p.Devices()
	if err != nil {
		return imp, nil, err
	}
	table, err := p.Timeseries()
	if err != nil {
		return imp, nil, err
	}

	var devices []Device
	for i, name := range table.Devices {
		unit := ""
		ean := ""
		if i < len(meters) {
			unit = meters[i].Unit
			ean = meters[i].Ean
		}

		count := 0
		var first, last time.Time
		for j, v := range table.Values[i] {
			if math.IsNaN(v) {
				continue
			}
			if count == 0 {
				first = table.Index[j]
			}
			last = table.Index[j]
			count++
			if s.sink != nil {
				s.sink.WriteRegisterReading(name, unit, table.Index[j], v)
			}
		}

		d := Device{
			AccessEAN:    ean,
			Name:         name,
			Unit:         unit,
			ReadingCount: count,
		}
		if count > 0 {
			d.FirstReading, d.LastReading = &first, &last
		}
		devices = append(devices, d)
	}

	imp.DeviceCount = len(devices)
	for _, d := range devices {
		imp.ReadingCount += d.ReadingCount
	}
	return imp, devices, nil
}

// fillHeader copies the shared UNI header fields onto the import record.
func (s *Service) fillHeader(imp *Import, p *uni.Parser) {
	if loc := p.Location(); loc != nil {
		imp.Timezone = loc.String()
	}
	if created := p.CreatedOn(); !created.IsZero() {
		imp.CreatedOn = &created
	}
}

// publishOutcome emits the import event and per-device reading
// announcements. Publish failures are logged, never fatal.
func (s *Service) publishOutcome(imp *Import, devices []Device) {
	if s.sink != nil && imp.Status == StatusOK {
		s.sink.WriteImportStats(imp.Filename, imp.Family, imp.DeviceCount, imp.ReadingCount)
	}

	if s.events == nil {
		return
	}

	event := mqtt.ImportEvent{
		ImportID: imp.ID,
		Filename: imp.Filename,
		Family:   imp.Family,
		Variant:  imp.Variant,
		Devices:  imp.DeviceCount,
		Readings: imp.ReadingCount,
		Error:    imp.Error,
	}
	if err := s.events.PublishImportEvent(event); err != nil {
		s.logger.Warn("Publishing import event failed", "file", imp.Filename, "error", err)
	}

	for _, d := range devices {
		if d.AccessEAN == "" || d.ReadingCount == 0 || d.FirstReading == nil {
			continue
		}
		if err := s.events.PublishDeviceReadings(d.AccessEAN, d.ReadingCount, *d.FirstReading, *d.LastReading); err != nil {
			s.logger.Warn("Publishing device readings failed", "access_ean", d.AccessEAN, "error", err)
		}
	}
}

// archive moves a processed file out of the inbox.
func (s *Service) archive(path string, log *logging.Logger) {
	if s.cfg.ArchiveDirectory == "" {
		return
	}
	if err := os.MkdirAll(s.cfg.ArchiveDirectory, 0o750); err != nil {
		log.Warn("Creating archive directory failed", "error", err)
		return
	}
	dest := filepath.Join(s.cfg.ArchiveDirectory, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		log.Warn("Archiving file failed", "error", err)
	}
}

func newImportID() string {
	return "imp-" + uuid.NewString()[:8]
}
