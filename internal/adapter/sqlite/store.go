// Package sqlite implements the local report cache on an embedded SQLite
// database.
package sqlite

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roadmedic/reportsync/internal/domain"
)

// schemaVersion is stored in the database's user_version pragma. Any
// mismatch on open wipes the cache and recreates it; cached rows are a
// mirror of the remote store and are never migrated.
const schemaVersion = 3

// reportRow is the cache table shape. The autoincrement primary key
// records insertion order and breaks ties between rows with the same
// capture timestamp.
type reportRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ReportID  string `gorm:"uniqueIndex;not null"`
	UserID    string `gorm:"index;not null"`
	Timestamp int64  `gorm:"not null"`
	Latitude  float64
	Longitude float64
	Severity  int32
	Address   string
	ImageURL  string
	ImagePath string
}

func (reportRow) TableName() string { return "pothole_reports" }

// Store is the on-disk report cache. Reads are concurrent; writes are
// serialized because SQLite allows a single writer.
type Store struct {
	db     *gorm.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// Open opens (or creates) the cache at path, wiping it when the stored
// schema version does not match schemaVersion.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	s := &Store{db: db, logger: log}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	var current int
	if err := s.db.Raw("PRAGMA user_version").Scan(&current).Error; err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if current != schemaVersion {
		if current != 0 {
			s.logger.Warn("cache schema changed, wiping local cache",
				"from", current, "to", schemaVersion)
		}
		if err := s.db.Migrator().DropTable(&reportRow{}); err != nil {
			return fmt.Errorf("drop cache table: %w", err)
		}
	}

	if err := s.db.AutoMigrate(&reportRow{}); err != nil {
		return fmt.Errorf("migrate cache table: %w", err)
	}
	if err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)).Error; err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

func rowFromReport(r domain.Report) reportRow {
	return reportRow{
		ReportID:  r.ID,
		UserID:    r.OwnerID,
		Timestamp: r.CapturedAt,
		Latitude:  r.Location.Lat,
		Longitude: r.Location.Lon,
		Severity:  int32(r.Severity),
		Address:   r.Address,
		ImageURL:  r.Asset.URL,
		ImagePath: r.Asset.Path,
	}
}

func (row reportRow) toReport() domain.Report {
	r := domain.Report{
		ID:         row.ReportID,
		OwnerID:    row.UserID,
		CapturedAt: row.Timestamp,
		Location:   domain.Point{Lat: row.Latitude, Lon: row.Longitude},
		Severity:   domain.ParseSeverity(row.Severity),
		Address:    row.Address,
	}
	if row.ImageURL != "" {
		r.Asset = domain.RemoteAsset(row.ImageURL)
	} else if row.ImagePath != "" {
		r.Asset = domain.LocalAsset(row.ImagePath)
	}
	return r
}

// Insert caches one report. Inserting an id that is already cached fails
// with ErrDuplicateID.
func (s *Store) Insert(report domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := rowFromReport(report)
	if err := s.db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateID, report.ID)
		}
		return fmt.Errorf("cache insert: %w", err)
	}
	return nil
}

// ListAll returns every cached report, newest first. Rows with equal
// timestamps are ordered by descending insertion order.
func (s *Store) ListAll() ([]domain.Report, error) {
	return s.list(s.db)
}

// ListByOwner returns the owner's cached reports, newest first.
func (s *Store) ListByOwner(ownerID string) ([]domain.Report, error) {
	return s.list(s.db.Where("user_id = ?", ownerID))
}

func (s *Store) list(tx *gorm.DB) ([]domain.Report, error) {
	var rows []reportRow
	if err := tx.Order("timestamp DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}

	reports := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, row.toReport())
	}
	return reports, nil
}

// Clear removes every cached row.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Where("1 = 1").Delete(&reportRow{}).Error; err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// isUniqueViolation matches the driver's textual unique-constraint error,
// which gorm does not always translate to ErrDuplicatedKey for SQLite.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
